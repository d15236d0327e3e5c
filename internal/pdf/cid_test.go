package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const rangeCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfrange
<0010> <0012> <0041>
<0020> <0021> [<0066 0069> <00E9>]
endbfrange
1 beginbfchar
<0003> <0020>
endbfchar
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseCMap(t *testing.T) {
	m := parseCMap([]byte(rangeCMap))

	assert.Equal(t, "ABC", m.Decode("\x00\x10\x00\x11\x00\x12"))
	assert.Equal(t, "fi é", m.Decode("\x00\x20\x00\x03\x00\x21"))
	assert.Equal(t, "", m.Decode("\x00\x99"))
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello world", "Hello world"},
		{"keeps newline and tab", "a\tb\nc", "a\tb\nc"},
		{"drops stray controls", "Hel\x00lo\x07 there", "Hello there"},
		{"drops invalid utf8", "ok\xff\xfe", "ok"},
		{"mostly binary", "\x00\x01\x00\x02", ""},
		{"binary with a letter", "\x00\x01\x00\x02\x00A", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}
