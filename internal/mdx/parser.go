// Package mdx parses documentation content: CommonMark with the usual
// extensions plus JSX-style widget blocks such as <Note> or <StepLinks />.
package mdx

import (
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Extensions used for every documentation parse. MathJax is off because
// docs use '$' in code and prose far more than they use math.
// OrderedListStart keeps step numbering across lists split by code blocks.
const Extensions = parser.CommonExtensions&^parser.MathJax | parser.OrderedListStart

// NewParser returns a single-use parser that recognizes widget blocks.
func NewParser() *parser.Parser {
	p := parser.NewWithExtensions(Extensions)
	p.Opts.ParserHook = widgetBlock
	return p
}

// Parse parses body with a fresh parser.
func Parse(body []byte) ast.Node {
	return NewParser().Parse(body)
}
