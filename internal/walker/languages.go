package walker

import "strings"

// TextFallbackLanguage is assigned to any extension not present in
// extensionLanguage, per spec §4.B: "unknown extensions are flagged as
// text-fallback and fed to line-window chunking."
const TextFallbackLanguage = "text-fallback"

// extensionLanguage maps a lowercased file extension (without the dot)
// to the language tag internal/chunker.Registry dispatches on. Only
// "go" has an AST-aware chunker today (internal/chunker.GoChunker); every
// other entry still narrows the language tag attached to the chunk
// record (spec §3's Chunk.language) even though it currently resolves to
// the line-window fallback chunker. No language-extension table exists
// anywhere in original_source/ (confirmed by search), so this table is
// authored directly from the file extensions each language's tooling
// conventionally uses.
var extensionLanguage = map[string]string{
	"go": "go",

	"py":  "python",
	"pyi": "python",

	"rs": "rust",

	"ts":  "typescript",
	"tsx": "typescript",
	"js":  "javascript",
	"jsx": "javascript",
	"mjs": "javascript",
	"cjs": "javascript",

	"java": "java",
	"kt":   "kotlin",
	"kts":  "kotlin",
	"scala": "scala",

	"c":   "c",
	"h":   "c",
	"cc":  "cpp",
	"cpp": "cpp",
	"cxx": "cpp",
	"hpp": "cpp",
	"hxx": "cpp",

	"cs": "csharp",

	"rb": "ruby",
	"php": "php",
	"swift": "swift",

	"sh":  "shell",
	"bash": "shell",
	"zsh": "shell",

	"sql": "sql",

	"yaml": "yaml",
	"yml":  "yaml",
	"json": "json",
	"toml": "toml",
	"xml":  "xml",
	"html": "html",
	"htm":  "html",
	"css":  "css",
	"scss": "css",

	"md":       "markdown",
	"markdown": "markdown",
}

// LanguageForPath selects a language tag for path by its extension,
// falling back to TextFallbackLanguage for anything not in the table
// (spec §4.B).
func LanguageForPath(path string) string {
	ext := extOf(path)
	if ext == "" {
		return TextFallbackLanguage
	}
	if lang, ok := extensionLanguage[ext]; ok {
		return lang
	}
	return TextFallbackLanguage
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	// Guard against dotfiles with no real extension, e.g. ".gitignore".
	slash := strings.LastIndexAny(path, `/\`)
	if slash >= i {
		return ""
	}
	if i == slash+1 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}
