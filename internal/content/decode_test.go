package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AcceptsWellFormedTree(t *testing.T) {
	raw, err := Decode([]byte(`{
		"title": "Guide",
		"sections": [
			{"title": "Intro", "body": "Hello"},
			{"title": "Setup", "body": "Steps", "children": [{"title": "Step 1", "body": "Do X"}]}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, guide(), raw)
}

func TestDecode_RejectsLooseInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"title": "T", "sections": [], "extra": 1}`,
		"nested unknown": `{"title": "T", "sections": [{"title": "A", "content": "x"}]}`,
		"wrong type":     `{"title": 7, "sections": []}`,
		"trailing data":  `{"title": "T", "sections": []} {}`,
		"empty":          `  `,
		"not an object":  `["T"]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			ps := problems(t, err)
			require.Len(t, ps, 1)
			assert.Contains(t, ps[0].Reason, "malformed request")
		})
	}
}
