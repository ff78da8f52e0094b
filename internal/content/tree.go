package content

// RawTree is the publish request as it arrives from the tool layer, before validation.
type RawTree struct {
	Title    string       `json:"title"`
	Sections []RawSection `json:"sections"`
}

// RawSection is one unvalidated chapter of a RawTree.
type RawSection struct {
	Title    string       `json:"title"`
	Body     string       `json:"body,omitempty"`
	Children []RawSection `json:"children,omitempty"`
}

// NodeID indexes a section inside a Tree arena.
type NodeID int

// NoParent marks top-level sections.
const NoParent NodeID = -1

// Node is a validated section. Depth is 1 for top-level sections.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Depth    int
	Title    string
	Body     string
	Children []NodeID
}

// Tree is a validated, immutable content tree. Sections live in an arena and are
// referenced by NodeID; node IDs are assigned in pre-order.
type Tree struct {
	title string
	nodes []Node
	roots []NodeID
}

// Title returns the tree title.
func (t *Tree) Title() string { return t.title }

// Len returns the number of sections in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Roots returns the top-level sections in publish order.
func (t *Tree) Roots() []NodeID {
	out := make([]NodeID, len(t.roots))
	copy(out, t.roots)
	return out
}

// Node returns a copy of the section with the given id.
func (t *Tree) Node(id NodeID) Node {
	n := t.nodes[id]
	n.Children = append([]NodeID(nil), n.Children...)
	return n
}

// Walk visits every section in pre-order. Traversal uses an explicit stack.
// Returning a non-nil error from fn stops the walk.
func (t *Tree) Walk(fn func(n Node) error) error {
	stack := make([]NodeID, 0, len(t.nodes))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[id]
		if err := fn(t.Node(id)); err != nil {
			return err
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return nil
}

// PreOrder returns all sections in pre-order.
func (t *Tree) PreOrder() []Node {
	out := make([]Node, 0, len(t.nodes))
	_ = t.Walk(func(n Node) error {
		out = append(out, n)
		return nil
	})
	return out
}

// Ancestors returns the ids from the top-level section down to id, inclusive.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var chain []NodeID
	for cur := id; cur != NoParent; cur = t.nodes[cur].Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
