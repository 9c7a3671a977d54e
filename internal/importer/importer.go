// Package importer converts uploaded files (.md, .html, .docx, .pdf) into
// the markdown heading convention the section engine understands: level-1/2
// headings delimit sections, deeper headings become body content.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Block is one flat piece of an imported document: a heading with its body,
// or bare preamble text (Level 0).
type Block struct {
	Title string
	Level int // original heading level, 0 for headingless text
	Body  string
}

// AppendBody adds a paragraph to the block, separated by a blank line.
func (b *Block) AppendBody(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.Body != "" {
		b.Body += "\n\n" + text
	} else {
		b.Body = text
	}
}

// Importer converts raw file bytes into blocks.
type Importer interface {
	Import(r io.Reader, filename string) ([]Block, error)
}

// ForFile returns the importer for a filename, by extension.
func ForFile(filename string) (Importer, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	case ".pdf":
		return &PDFImporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}

// IsSupported checks whether a filename has an importable extension.
func IsSupported(filename string) bool {
	_, err := ForFile(filename)
	return err == nil
}

// RenderMarkdown flattens blocks into engine markdown. Heading levels 1 and 2
// keep their markers; deeper levels are demoted to `###` so they stay inside
// the enclosing section.
func RenderMarkdown(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		var sb strings.Builder
		if b.Level > 0 && strings.TrimSpace(b.Title) != "" {
			switch {
			case b.Level == 1:
				sb.WriteString("# ")
			case b.Level == 2:
				sb.WriteString("## ")
			default:
				sb.WriteString("### ")
			}
			sb.WriteString(strings.TrimSpace(b.Title))
			if b.Body != "" {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(b.Body)
		if s := strings.TrimSpace(sb.String()); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}
