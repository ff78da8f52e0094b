package notion

import "strings"

// PlainTextLanguage is Notion's code language for unknown or missing languages.
const PlainTextLanguage = "plain text"

var codeLanguages = map[string]bool{
	"abap": true, "agda": true, "arduino": true, "assembly": true, "bash": true,
	"basic": true, "c": true, "c#": true, "c++": true, "clojure": true,
	"coffeescript": true, "css": true, "dart": true, "diff": true, "docker": true,
	"elixir": true, "elm": true, "erlang": true, "f#": true, "flow": true,
	"fortran": true, "go": true, "graphql": true, "groovy": true, "haskell": true,
	"html": true, "java": true, "javascript": true, "json": true, "julia": true,
	"kotlin": true, "latex": true, "less": true, "lisp": true, "lua": true,
	"makefile": true, "markdown": true, "matlab": true, "mermaid": true, "nix": true,
	"objective-c": true, "ocaml": true, "pascal": true, "perl": true, "php": true,
	"powershell": true, "protobuf": true, "python": true, "r": true, "ruby": true,
	"rust": true, "scala": true, "scheme": true, "scss": true, "shell": true,
	"sql": true, "swift": true, "toml": true, "typescript": true, "vb.net": true,
	"verilog": true, "vhdl": true, "xml": true, "yaml": true,
}

var languageAliases = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"sh":         "shell",
	"zsh":        "shell",
	"md":         "markdown",
	"golang":     "go",
	"yml":        "yaml",
	"rs":         "rust",
	"rb":         "ruby",
	"cpp":        "c++",
	"csharp":     "c#",
	"cs":         "c#",
	"dockerfile": "docker",
	"ps1":        "powershell",
	"proto":      "protobuf",
	"kt":         "kotlin",
	"text":       PlainTextLanguage,
	"txt":        PlainTextLanguage,
}

// CodeLanguage maps a fenced code block info string onto a language Notion accepts.
func CodeLanguage(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return PlainTextLanguage
	}
	lang := strings.ToLower(fields[0])
	if codeLanguages[lang] {
		return lang
	}
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return PlainTextLanguage
}
