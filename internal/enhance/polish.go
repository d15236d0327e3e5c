package enhance

import (
	"regexp"
	"strings"
	"unicode"
)

const maxPasses = 10

var (
	blankLines   = regexp.MustCompile(`\n[ \t]*\n[\s]*`)
	inlineSpace  = regexp.MustCompile(`[ \t\f\v]+`)
	spaceBefore  = regexp.MustCompile(` +([,.;:!?])`)
	missingAfter = regexp.MustCompile(`([,;:!?])([A-Za-z])`)
	periodJoin   = regexp.MustCompile(`([a-z]{2})\.([A-Z][a-z])`)
	words        = regexp.MustCompile(`[A-Za-z']+`)
)

var functionWords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true, "and": true,
	"in": true, "is": true, "it": true, "for": true, "on": true,
}

var firstPerson = map[string]string{
	"i": "I", "i'm": "I'm", "i've": "I've", "i'll": "I'll", "i'd": "I'd",
}

var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "mr": true, "mrs": true,
	"ms": true, "dr": true, "st": true, "no": true, "fig": true, "approx": true,
}

// Polish applies the local rewriting rules until the text stops changing, so
// Polish(Polish(x)) == Polish(x).
func Polish(text string) string {
	cur := text
	for i := 0; i < maxPasses; i++ {
		next := polishOnce(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

func polishOnce(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	paras := blankLines.Split(text, -1)
	out := make([]string, 0, len(paras))
	for _, p := range paras {
		if p = polishParagraph(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func polishParagraph(p string) string {
	lines := strings.Split(p, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		line = spaceBefore.ReplaceAllString(line, "$1")
		line = missingAfter.ReplaceAllString(line, "$1 $2")
		line = periodJoin.ReplaceAllString(line, "$1. $2")
		line = fixFirstPerson(line)
		line = dropRepeatedWords(line)
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return ""
	}

	p = capitalizeSentences(strings.Join(kept, "\n"))
	if len(strings.Fields(p)) >= 4 {
		if last := []rune(p)[len([]rune(p))-1]; unicode.IsLetter(last) || unicode.IsDigit(last) {
			p += "."
		}
	}
	return p
}

// fixFirstPerson upper-cases a standalone "i" and its contractions. An "i"
// directly followed by a period and a letter is part of an abbreviation.
func fixFirstPerson(line string) string {
	locs := words.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return line
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		w := line[loc[0]:loc[1]]
		repl, ok := firstPerson[w]
		if ok && loc[1]+1 < len(line) && line[loc[1]] == '.' && isASCIILetter(line[loc[1]+1]) {
			ok = false
		}
		if ok && loc[0] > 0 && line[loc[0]-1] == '.' {
			ok = false
		}
		b.WriteString(line[prev:loc[0]])
		if ok {
			b.WriteString(repl)
		} else {
			b.WriteString(w)
		}
		prev = loc[1]
	}
	b.WriteString(line[prev:])
	return b.String()
}

// dropRepeatedWords removes the second of two identical function words
// separated by a single space ("the the" -> "the").
func dropRepeatedWords(line string) string {
	locs := words.FindAllStringIndex(line, -1)
	var b strings.Builder
	prev := 0
	for i, loc := range locs {
		if i > 0 {
			p := locs[i-1]
			w := strings.ToLower(line[loc[0]:loc[1]])
			if loc[0] == p[1]+1 && line[p[1]] == ' ' && functionWords[w] && strings.ToLower(line[p[0]:p[1]]) == w {
				// Skip the space and the duplicate.
				b.WriteString(line[prev:p[1]])
				prev = loc[1]
				continue
			}
		}
	}
	b.WriteString(line[prev:])
	return b.String()
}

// capitalizeSentences upper-cases the first letter of the paragraph and of
// every sentence that follows ".", "!" or "?" and whitespace, unless the
// period ends a known abbreviation.
func capitalizeSentences(p string) string {
	r := []rune(p)
	start := true
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case unicode.IsLetter(c):
			if start && unicode.IsLower(c) {
				r[i] = unicode.ToUpper(c)
			}
			start = false
		case c == '!' || c == '?':
			start = nextIsSpace(r, i)
		case c == '.':
			start = nextIsSpace(r, i) && !endsAbbreviation(r, i)
		case unicode.IsDigit(c):
			start = false
		}
	}
	return string(r)
}

func nextIsSpace(r []rune, i int) bool {
	return i+1 < len(r) && unicode.IsSpace(r[i+1])
}

func endsAbbreviation(r []rune, dot int) bool {
	j := dot
	for j > 0 && (unicode.IsLetter(r[j-1]) || r[j-1] == '.') {
		j--
	}
	return abbreviations[strings.ToLower(string(r[j:dot]))]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
