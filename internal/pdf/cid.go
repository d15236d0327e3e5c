package pdf

import (
	"bytes"
	"encoding/hex"
	"io"
	"strings"
	"unicode/utf16"

	rpdf "rsc.io/pdf"
)

// rsc.io/pdf returns raw glyph codes for Identity-H/V fonts, so pages that
// use them are decoded here through the font's ToUnicode map.

// usesCIDFonts reports whether any font on the page has a two-byte
// Identity encoding.
func usesCIDFonts(p rpdf.Page) bool {
	for _, name := range p.Fonts() {
		enc := p.Font(name).V.Key("Encoding")
		if enc.Kind() == rpdf.Name && strings.HasPrefix(enc.Name(), "Identity-") {
			return true
		}
	}
	return false
}

type decoder interface {
	Decode(raw string) string
}

// noText drops everything drawn with a CID font that has no ToUnicode map.
type noText struct{}

func (noText) Decode(string) string { return "" }

func fontDecoder(p rpdf.Page, name string) decoder {
	font := p.Font(name)
	enc := font.V.Key("Encoding")
	if enc.Kind() != rpdf.Name || !strings.HasPrefix(enc.Name(), "Identity-") {
		if e := font.Encoder(); e != nil {
			return e
		}
		return noText{}
	}
	toUnicode := font.V.Key("ToUnicode")
	if toUnicode.Kind() != rpdf.Stream {
		return noText{}
	}
	rc := toUnicode.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return noText{}
	}
	return parseCMap(data)
}

// cidPageText walks the content stream and rebuilds lines from text-showing
// operators. Positioning is reduced to line breaks on vertical moves and
// spaces on wide TJ kerns.
func cidPageText(p rpdf.Page) string {
	var lines []string
	var line strings.Builder
	var lineY float64
	var cur decoder = noText{}
	fonts := map[string]decoder{}

	newline := func() {
		if text := strings.TrimSpace(line.String()); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}
	show := func(v rpdf.Value) {
		line.WriteString(cur.Decode(v.RawString()))
	}

	interpret := func(strm rpdf.Value) {
		rpdf.Interpret(strm, func(stk *rpdf.Stack, op string) {
			args := make([]rpdf.Value, stk.Len())
			for i := len(args) - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			switch op {
			case "Tf":
				if len(args) == 2 {
					name := args[0].Name()
					if _, ok := fonts[name]; !ok {
						fonts[name] = fontDecoder(p, name)
					}
					cur = fonts[name]
				}
			case "Td", "TD":
				if len(args) == 2 && args[1].Float64() != 0 {
					newline()
				}
			case "Tm":
				if len(args) == 6 && args[5].Float64() != lineY {
					lineY = args[5].Float64()
					newline()
				}
			case "T*":
				newline()
			case "Tj":
				if len(args) == 1 {
					show(args[0])
				}
			case "'":
				newline()
				if len(args) == 1 {
					show(args[0])
				}
			case `"`:
				newline()
				if len(args) == 3 {
					show(args[2])
				}
			case "TJ":
				if len(args) != 1 {
					return
				}
				arr := args[0]
				for i := 0; i < arr.Len(); i++ {
					v := arr.Index(i)
					switch v.Kind() {
					case rpdf.String:
						show(v)
					case rpdf.Integer, rpdf.Real:
						if v.Float64() < -200 {
							line.WriteByte(' ')
						}
					}
				}
			}
		})
	}

	contents := p.V.Key("Contents")
	if contents.Kind() == rpdf.Array {
		for i := 0; i < contents.Len(); i++ {
			interpret(contents.Index(i))
		}
	} else {
		interpret(contents)
	}
	newline()
	return strings.Join(lines, "\n")
}

type cidRange struct {
	lo, hi uint16
	dst    []uint16
	array  [][]uint16
}

// cmap maps two-byte glyph codes to text, read from the bfchar and bfrange
// sections of a ToUnicode CMap.
type cmap struct {
	chars  map[uint16][]uint16
	ranges []cidRange
}

func (m *cmap) Decode(raw string) string {
	var out []uint16
	for i := 0; i+1 < len(raw); i += 2 {
		code := uint16(raw[i])<<8 | uint16(raw[i+1])
		out = append(out, m.lookup(code)...)
	}
	return string(utf16.Decode(out))
}

func (m *cmap) lookup(code uint16) []uint16 {
	if u, ok := m.chars[code]; ok {
		return u
	}
	for _, r := range m.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := int(code - r.lo)
		if r.array != nil {
			if off < len(r.array) {
				return r.array[off]
			}
			return nil
		}
		if len(r.dst) == 0 {
			return nil
		}
		u := append([]uint16(nil), r.dst...)
		u[len(u)-1] += uint16(off)
		return u
	}
	return nil
}

func parseCMap(data []byte) *cmap {
	m := &cmap{chars: map[uint16][]uint16{}}
	toks := cmapTokens(data)

	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "beginbfchar":
			i++
			for ; i+1 < len(toks) && toks[i] != "endbfchar"; i += 2 {
				src, dst := hexUnits(toks[i]), hexUnits(toks[i+1])
				if len(src) == 1 && dst != nil {
					m.chars[src[0]] = dst
				}
			}
		case "beginbfrange":
			i++
			for i+2 < len(toks) && toks[i] != "endbfrange" {
				lo, hi := hexUnits(toks[i]), hexUnits(toks[i+1])
				i += 2
				r := cidRange{}
				if toks[i] == "[" {
					r.array = [][]uint16{}
					for i++; i < len(toks) && toks[i] != "]"; i++ {
						r.array = append(r.array, hexUnits(toks[i]))
					}
				} else {
					r.dst = hexUnits(toks[i])
				}
				i++
				if len(lo) == 1 && len(hi) == 1 && lo[0] <= hi[0] {
					r.lo, r.hi = lo[0], hi[0]
					m.ranges = append(m.ranges, r)
				}
			}
		}
	}
	return m
}

// hexUnits decodes a <...> token into big-endian UTF-16 units.
func hexUnits(tok string) []uint16 {
	if len(tok) < 2 || tok[0] != '<' {
		return nil
	}
	s := tok[1 : len(tok)-1]
	if len(s)%4 != 0 {
		s += strings.Repeat("0", 4-len(s)%4)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return units
}

// cmapTokens splits a CMap into hex strings (kept with their brackets, inner
// whitespace removed), array brackets and bare words. Names, dictionaries,
// literal strings and comments are skipped.
func cmapTokens(data []byte) []string {
	var toks []string
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '<' && i+1 < len(data) && data[i+1] == '<', c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				return toks
			}
			var b strings.Builder
			for _, h := range data[i : i+end+1] {
				if !isSpace(h) {
					b.WriteByte(h)
				}
			}
			toks = append(toks, b.String())
			i += end + 1
		case c == '[' || c == ']':
			toks = append(toks, string(c))
			i++
		case c == '(':
			depth := 0
			for ; i < len(data); i++ {
				if data[i] == '\\' {
					i++
					continue
				}
				if data[i] == '(' {
					depth++
				} else if data[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
		case c == '/':
			i++
			for i < len(data) && !isSpace(data[i]) && !isDelim(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isSpace(data[i]) && !isDelim(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			toks = append(toks, string(data[start:i]))
		}
	}
	return toks
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}
