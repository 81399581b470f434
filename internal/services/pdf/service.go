package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	fontFamily = "Helvetica"
	bodySize   = 10.0
	lineHeight = 5.0
	pageWidth  = 190.0 // A4 width minus 10mm margins
)

// Service renders analysis reports to PDF
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PDFService = (*Service)(nil)

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// ConvertMarkdownToPDF converts a markdown report to PDF bytes. The title is
// stored in the document properties and repeated in the page footer.
func (s *Service) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("title", title).
		Msg("Converting markdown to PDF")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetCreator("earnings", true)
	doc.SetCreationDate(time.Now())
	doc.SetMargins(10, 12, 10)
	doc.SetAutoPageBreak(true, 15)
	doc.AliasNbPages("")

	tr := doc.UnicodeTranslatorFromDescriptor("")
	footer := tr(title)
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(fontFamily, "I", 8)
		doc.SetTextColor(128, 128, 128)
		doc.CellFormat(0, 6, fmt.Sprintf("%s  |  page %d of {nb}", footer, doc.PageNo()), "", 0, "C", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	})
	doc.AddPage()
	doc.SetFont(fontFamily, "", bodySize)

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify))
	source := []byte(normalizePunctuation(markdown))
	root := md.Parser().Parse(text.NewReader(source))

	w := &writer{pdf: doc, source: source, tr: tr}
	if err := ast.Walk(root, w.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated")
	return buf.Bytes(), nil
}

// writer walks the goldmark AST and writes flowing text into the PDF
type writer struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string

	size      float64
	bold      bool
	italic    bool
	quote     bool
	link      string
	listDepth int
	ordinals  []int
}

func (w *writer) font() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic || w.quote {
		style += "I"
	}
	size := w.size
	if size == 0 {
		size = bodySize
	}
	w.pdf.SetFont(fontFamily, style, size)
}

func (w *writer) write(s string) {
	if s == "" {
		return
	}
	if w.link != "" {
		w.pdf.SetTextColor(20, 70, 160)
		w.pdf.WriteLinkString(lineHeight, w.tr(s), w.link)
		w.pdf.SetTextColor(0, 0, 0)
		return
	}
	w.pdf.Write(lineHeight, w.tr(s))
}

func (w *writer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(4)
			w.size = headingSize(node.Level)
			w.bold = true
		} else {
			w.pdf.Ln(lineHeight + 2)
			w.size, w.bold = 0, false
		}
		w.font()

	case *ast.Paragraph:
		if !entering && w.listDepth == 0 {
			w.pdf.Ln(lineHeight + 2)
		}

	case *ast.TextBlock:
		// Tight list items hold their text in text blocks

	case *ast.Text:
		if entering {
			w.write(string(node.Segment.Value(w.source)))
			if node.HardLineBreak() {
				w.pdf.Ln(lineHeight)
			} else if node.SoftLineBreak() {
				w.write(" ")
			}
		}

	case *ast.String:
		if entering {
			w.write(string(node.Value))
		}

	case *ast.Emphasis:
		if node.Level >= 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.font()

	case *extast.Strikethrough:
		// No strike style in core fonts; children render as plain text

	case *ast.Link:
		if entering {
			w.link = string(node.Destination)
		} else {
			w.link = ""
		}

	case *ast.AutoLink:
		if entering {
			url := string(node.URL(w.source))
			w.link = url
			w.write(url)
			w.link = ""
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", bodySize)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.write(string(t.Segment.Value(w.source)))
				}
			}
			w.font()
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		w.quote = entering
		if entering {
			w.pdf.SetLeftMargin(16)
			w.pdf.SetX(16)
		} else {
			w.pdf.SetLeftMargin(10)
		}
		w.font()

	case *ast.List:
		if entering {
			w.listDepth++
			w.ordinals = append(w.ordinals, node.Start)
		} else {
			w.listDepth--
			w.ordinals = w.ordinals[:len(w.ordinals)-1]
			if w.listDepth == 0 {
				w.pdf.Ln(lineHeight)
			}
		}

	case *ast.ListItem:
		if entering {
			w.pdf.Ln(lineHeight)
			indent := 10 + float64(w.listDepth)*5
			w.pdf.SetX(indent)
			list := node.Parent().(*ast.List)
			if list.IsOrdered() {
				idx := len(w.ordinals) - 1
				w.write(fmt.Sprintf("%d. ", w.ordinals[idx]))
				w.ordinals[idx]++
			} else {
				w.write("- ")
			}
		}

	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			y := w.pdf.GetY()
			w.pdf.SetDrawColor(180, 180, 180)
			w.pdf.Line(10, y, 10+pageWidth, y)
			w.pdf.SetDrawColor(0, 0, 0)
			w.pdf.Ln(4)
		}

	case *extast.Table:
		if entering {
			w.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 13
	case 3:
		return 11.5
	}
	return bodySize + 0.5
}

func (w *writer) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", 9)
	w.pdf.SetFillColor(244, 244, 244)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.pdf.MultiCell(0, 4.5, w.tr(strings.TrimRight(string(line.Value(w.source)), "\n")), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.font()
	w.pdf.Ln(2)
}

// table renders rows as bordered cells with widths proportional to content,
// each row as tall as its tallest wrapped cell
func (w *writer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			row = append(row, w.tr(strings.TrimSpace(string(cell.Text(w.source)))))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	const size, cellLine = 8.0, 4.0
	w.pdf.SetFont(fontFamily, "", size)

	widths := make([]float64, cols)
	total := 0.0
	for c := 0; c < cols; c++ {
		longest := 12.0
		for _, row := range rows {
			if c < len(row) {
				if sw := w.pdf.GetStringWidth(row[c]) + 4; sw > longest {
					longest = sw
				}
			}
		}
		if longest > pageWidth/2 {
			longest = pageWidth / 2
		}
		widths[c] = longest
		total += longest
	}
	for c := range widths {
		widths[c] *= pageWidth / total
	}

	w.pdf.Ln(2)
	_, pageHeight := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()
	for r, row := range rows {
		style := ""
		if r == 0 {
			style = "B"
			w.pdf.SetFillColor(230, 230, 230)
		}
		w.pdf.SetFont(fontFamily, style, size)

		lines := 1
		for c := 0; c < cols && c < len(row); c++ {
			if n := len(w.pdf.SplitText(row[c], widths[c]-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines)*cellLine + 2

		if w.pdf.GetY()+height > pageHeight-bottom {
			w.pdf.AddPage()
		}
		x, y := 10.0, w.pdf.GetY()
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			fill := "D"
			if r == 0 {
				fill = "FD"
			}
			w.pdf.Rect(x, y, widths[c], height, fill)
			w.pdf.SetXY(x+1, y+1)
			w.pdf.MultiCell(widths[c]-2, cellLine, cell, "", "L", false)
			x += widths[c]
		}
		w.pdf.SetXY(10, y+height)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.font()
	w.pdf.Ln(3)
}

// normalizePunctuation swaps characters the core PDF fonts cannot encode
func normalizePunctuation(s string) string {
	return strings.NewReplacer(
		"‑", "-",
		"−", "-",
		"→", "->",
		"≤", "<=",
		"≥", ">=",
		"✓", "[x]",
	).Replace(s)
}
