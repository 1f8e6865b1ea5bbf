package notebook

import (
	"fmt"
	"html"
	"strings"

	"git.home.luguber.info/inful/bookbuilder/internal/markdown"
)

// Render converts a parsed notebook to an HTML fragment, cell by cell, in
// file order. Prose, code, and recorded outputs keep their relative ordering
// within the document.
func Render(doc *Document, opts markdown.Options) ([]byte, error) {
	var sb strings.Builder
	lang := doc.Language()

	for i, cell := range doc.Cells {
		switch cell.Type {
		case "markdown":
			frag, err := markdown.Convert([]byte(cell.Source), opts)
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", i, err)
			}
			sb.WriteString("<div class=\"cell cell-markdown\">\n")
			sb.Write(frag)
			sb.WriteString("</div>\n")
		case "code":
			sb.WriteString("<div class=\"cell cell-code\">\n")
			sb.WriteString(fmt.Sprintf("<pre><code class=\"language-%s\">", html.EscapeString(lang)))
			sb.WriteString(html.EscapeString(string(cell.Source)))
			sb.WriteString("</code></pre>\n")
			for _, out := range cell.Outputs {
				renderOutput(&sb, out)
			}
			sb.WriteString("</div>\n")
		case "raw":
			sb.WriteString("<div class=\"cell cell-raw\"><pre>")
			sb.WriteString(html.EscapeString(string(cell.Source)))
			sb.WriteString("</pre></div>\n")
		default:
			return nil, fmt.Errorf("cell %d: unknown cell type %q", i, cell.Type)
		}
	}
	return []byte(sb.String()), nil
}

func renderOutput(sb *strings.Builder, out CellOutput) {
	switch out.Type {
	case "stream":
		sb.WriteString("<pre class=\"cell-output\">")
		sb.WriteString(html.EscapeString(string(out.Text)))
		sb.WriteString("</pre>\n")
	case "execute_result", "display_data":
		// Prefer the recorded HTML representation when one exists.
		if h, ok := out.Data["text/html"]; ok {
			sb.WriteString("<div class=\"cell-output\">")
			sb.WriteString(string(h))
			sb.WriteString("</div>\n")
			return
		}
		if txt, ok := out.Data["text/plain"]; ok {
			sb.WriteString("<pre class=\"cell-output\">")
			sb.WriteString(html.EscapeString(string(txt)))
			sb.WriteString("</pre>\n")
		}
	case "error":
		sb.WriteString("<pre class=\"cell-output cell-error\">")
		sb.WriteString(html.EscapeString(out.Name + ": " + out.Value))
		sb.WriteString("</pre>\n")
	}
}

// ExtractTitle returns the first level-1 heading of the first markdown cell.
func ExtractTitle(doc *Document) (string, bool) {
	for _, cell := range doc.Cells {
		if cell.Type != "markdown" {
			continue
		}
		return markdown.ExtractTitle([]byte(cell.Source))
	}
	return "", false
}
