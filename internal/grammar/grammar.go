// File: internal/grammar/grammar.go
// Description: GrammarRegistry lazily loads tree-sitter grammars and
// memoises one parser instance per language. The parser lifecycle
// (NewParser/SetLanguage/ParseCtx/tree.Close) is the same shape the
// deleted javascript fingerprinter used, generalized across languages.
package grammar

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	tsx "github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported tree-sitter grammar.
type Language string

const (
	JS     Language = "js"
	TS     Language = "ts"
	TSX    Language = "tsx"
	Python Language = "python"
	Java   Language = "java"
	Go     Language = "go"
	C      Language = "c"
)

// extensionMap maps a file extension to its language id. JSX and CJS/MJS
// files map to js, since the JS grammar handles JSX syntax fine for our
// purposes.
var extensionMap = map[string]Language{
	".js":   JS,
	".jsx":  JS,
	".cjs":  JS,
	".mjs":  JS,
	".ts":   TS,
	".tsx":  TSX,
	".py":   Python,
	".java": Java,
	".go":   Go,
	".c":    C,
	".h":    C,
}

// LanguageForFile resolves a language id from a filename's extension. The
// second return value is false when the extension has no known grammar.
func LanguageForFile(filename string) (Language, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := extensionMap[ext]
	return lang, ok
}

// Tree wraps a parsed syntax tree. Callers MUST call Delete when done with
// it; the underlying tree-sitter tree holds C memory that is not
// GC-tracked.
type Tree struct {
	tree   *sitter.Tree
	Source []byte
	Lang   Language
}

// Root returns the tree's root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Delete releases the underlying tree-sitter tree.
func (t *Tree) Delete() {
	t.tree.Close()
}

// Registry memoises one tree-sitter language grammar per supported
// Language and exposes Parse. It has no other state, so a single
// package-level instance is safe to share; New exists so callers can
// still construct and inject one in tests.
type Registry struct {
	mu    sync.Mutex
	cache map[Language]*sitter.Language
}

// New constructs an empty GrammarRegistry. Grammars are loaded lazily on
// first Parse call for each language, not eagerly here.
func New() *Registry {
	return &Registry{cache: make(map[Language]*sitter.Language)}
}

func (r *Registry) grammarFor(lang Language) (*sitter.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.cache[lang]; ok {
		return g, nil
	}

	var g *sitter.Language
	switch lang {
	case JS:
		g = javascript.GetLanguage()
	case TS:
		g = typescript.GetLanguage()
	case TSX:
		g = tsx.GetLanguage()
	case Python:
		g = python.GetLanguage()
	case Java:
		g = java.GetLanguage()
	case Go:
		g = golang.GetLanguage()
	case C:
		g = c.GetLanguage()
	default:
		return nil, fmt.Errorf("grammar: unsupported language %q", lang)
	}

	r.cache[lang] = g
	return g, nil
}

// LanguageGrammar exposes the memoised *sitter.Language for a language id,
// for callers (like QueryRegistry) that need to compile queries directly
// rather than go through Parse.
func (r *Registry) LanguageGrammar(lang string) (*sitter.Language, error) {
	return r.grammarFor(Language(lang))
}

// Parse parses source under the given language, returning an AST handle
// the caller must Delete. Parse failures (a nil tree from tree-sitter) are
// surfaced as an error; syntax errors within an otherwise-parsed tree are
// not — callers should check Tree.Root().HasError() if they care.
func (r *Registry) Parse(ctx context.Context, source []byte, lang Language) (*Tree, error) {
	g, err := r.grammarFor(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("grammar: parse failed for language %q: %w", lang, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("grammar: parser returned no tree for language %q", lang)
	}

	return &Tree{tree: tree, Source: source, Lang: lang}, nil
}
