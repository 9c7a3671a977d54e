package importer

import (
	"bytes"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownImporter normalizes arbitrary markdown (including setext headings
// and inline formatting inside headings) into flat blocks via the goldmark
// AST.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Import(r io.Reader, filename string) ([]Block, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []Block
	current := &Block{} // headingless preamble collector

	flush := func() {
		if current.Title != "" || current.Body != "" {
			blocks = append(blocks, *current)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			current = &Block{
				Title: string(h.Text(src)),
				Level: h.Level,
			}
			continue
		}
		current.AppendBody(blockText(n, src))
	}
	flush()

	return blocks, nil
}

// blockText extracts the raw text of a non-heading goldmark block node.
// Leaf blocks (paragraphs, code blocks) carry their own source lines;
// container blocks (lists, quotes) only hold other blocks, so recurse.
func blockText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			var buf bytes.Buffer
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return buf.String()
		}
	}
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s := blockText(c, src); s != "" {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(s)
		}
	}
	return buf.String()
}
