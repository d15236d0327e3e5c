// Package pdftest writes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	fontSize = 12
	leading  = 14
)

// Build returns a PDF with one page per entry. Newlines in a page start a new
// text line. Text is set in Courier so every glyph has a known width.
func Build(pages []string) []byte {
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	font := fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		widths)

	contents := make([]string, len(pages))
	for i, text := range pages {
		contents[i] = stream(text, func(line string) string { return "(" + escape(line) + ")" })
	}
	return assemble([]string{font}, contents)
}

// BuildCID returns a PDF whose text is set in a Type0 font with Identity-H
// encoding, the layout office suites and browsers export. Every distinct rune
// gets a two-byte glyph code in order of first use. The font carries a
// ToUnicode map only when toUnicode is set.
func BuildCID(pages []string, toUnicode bool) []byte {
	codes := map[rune]int{}
	var order []rune
	for _, text := range pages {
		for _, r := range text {
			if r == '\n' {
				continue
			}
			if _, ok := codes[r]; !ok {
				order = append(order, r)
				codes[r] = len(order)
			}
		}
	}

	// Objects 3 (Type0), 4 (CIDFont) and 5 (ToUnicode) precede the pages.
	type0 := "<< /Type /Font /Subtype /Type0 /BaseFont /AAAAAA+Arial /Encoding /Identity-H /DescendantFonts [4 0 R]"
	if toUnicode {
		type0 += " /ToUnicode 5 0 R"
	}
	type0 += " >>"
	cidFont := "<< /Type /Font /Subtype /CIDFontType2 /BaseFont /AAAAAA+Arial " +
		"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /DW 600 >>"
	cmap := unicodeCMap(order)
	fonts := []string{type0, cidFont, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(cmap), cmap)}

	contents := make([]string, len(pages))
	for i, text := range pages {
		contents[i] = stream(text, func(line string) string {
			var b strings.Builder
			b.WriteByte('<')
			for _, r := range line {
				fmt.Fprintf(&b, "%04X", codes[r])
			}
			b.WriteByte('>')
			return b.String()
		})
	}
	return assemble(fonts, contents)
}

func unicodeCMap(order []rune) string {
	var b strings.Builder
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	fmt.Fprintf(&b, "%d beginbfchar\n", len(order))
	for i, r := range order {
		fmt.Fprintf(&b, "<%04X> <%04X>\n", i+1, r)
	}
	b.WriteString("endbfchar\nendcmap\nCMapName currentdict /CMap defineresource pop\nend\nend")
	return b.String()
}

// assemble lays out catalog, page tree, font objects starting at 3 (the first
// is the page font F1), then page/content pairs.
func assemble(fonts []string, contents []string) []byte {
	first := 3 + len(fonts)

	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := make([]string, len(contents))
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", first+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents)))
	objects = append(objects, fonts...)

	for i, content := range contents {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", first+2*i+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func stream(text string, show func(line string) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BT /F1 %d Tf 72 720 Td", fontSize)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			fmt.Fprintf(&b, " 0 -%d Td", leading)
		}
		fmt.Fprintf(&b, " %s Tj", show(line))
	}
	b.WriteString(" ET")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
