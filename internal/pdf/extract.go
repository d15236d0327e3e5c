// Package pdf pulls plain text out of uploaded PDF files, one string per page.
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"

	rpdf "rsc.io/pdf"
)

const magic = "%PDF-"

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(magic))
}

// ExtractPages returns the text of every page in order. Pages without a text
// layer come back as empty strings so page numbers stay aligned.
func ExtractPages(data []byte) (pages []string, err error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("file is not a PDF: %w", apperror.ErrUnsupportedMediaType)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			logger.Sugar.Warnf("PDF parser panicked: %v", r)
			pages, err = nil, fmt.Errorf("could not read PDF: %w", apperror.ErrInvalidArgument)
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("could not read PDF (%v): %w", err, apperror.ErrInvalidArgument)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		var text string
		if usesCIDFonts(p) {
			text = cidPageText(p)
		} else {
			text = pageText(p.Content().Text)
		}
		pages = append(pages, cleanText(text))
	}
	return pages, nil
}

// cleanText drops control characters other than newline and tab and invalid
// UTF-8. A page where fewer than half the remaining runes are printable is
// treated as having no text.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	var b strings.Builder
	var total, printable int
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		total++
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
		b.WriteRune(r)
	}
	if printable*2 < total {
		return ""
	}
	return strings.TrimSpace(b.String())
}

// pageText rebuilds lines from positioned glyphs. Glyphs are grouped into a
// line while their baseline stays within half a font size; a horizontal gap
// wider than a fifth of the font size becomes a space.
func pageText(glyphs []rpdf.Text) string {
	if len(glyphs) == 0 {
		return ""
	}

	var lines [][]rpdf.Text
	var current []rpdf.Text
	lineY := glyphs[0].Y
	for _, g := range glyphs {
		tol := math.Max(g.FontSize*0.5, 1)
		if len(current) > 0 && math.Abs(g.Y-lineY) > tol {
			lines = append(lines, current)
			current = nil
		}
		if len(current) == 0 {
			lineY = g.Y
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	var out strings.Builder
	for li, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

		var b strings.Builder
		for i, g := range line {
			if i > 0 {
				prev := line[i-1]
				gap := g.X - (prev.X + prev.W)
				if gap > g.FontSize*0.2 {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		if li > 0 && out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}
	return out.String()
}
