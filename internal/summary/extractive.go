package summary

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// minContentWords is the least amount of meaningful text worth summarizing.
const minContentWords = 12

// InsufficientMessage is returned when there is too little text to summarize.
const InsufficientMessage = "This document does not contain enough readable text to summarize."

var stopwords = toSet(`a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for from
further had has have having he her here hers herself him himself his how i if in into is it its
itself just me more most my myself no nor not now of off on once only or other our ours ourselves
out over own same she should so some such than that the their theirs them themselves then there
these they this those through to too under until up very was we were what when where which while
who whom why will with would you your yours yourself yourselves also may might must shall upon`)

var abbrev = toSet(`e.g i.e etc vs mr mrs ms dr st no fig approx al`)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

type sentence struct {
	pos   int
	text  string
	terms []string
	score float64
}

// Extractive picks the highest-ranked sentences by content-word frequency,
// with a small bonus for sentences near the start, and returns them in their
// original order within maxChars.
func Extractive(text string, maxSentences, maxChars int) Result {
	sentences := splitSentences(text)

	freq := make(map[string]int)
	total := 0
	for _, s := range sentences {
		for _, t := range s.terms {
			freq[t]++
			total++
		}
	}
	if total < minContentWords || len(sentences) == 0 {
		return Result{Text: InsufficientMessage, Insufficient: true}
	}

	n := float64(len(sentences))
	for i := range sentences {
		s := &sentences[i]
		if len(s.terms) == 0 {
			continue
		}
		var sum float64
		for _, t := range s.terms {
			sum += float64(freq[t])
		}
		s.score = sum / math.Sqrt(float64(len(s.terms)))
		s.score *= 1 + 0.3*(1-float64(s.pos)/n)
	}

	ranked := make([]sentence, len(sentences))
	copy(ranked, sentences)
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	var picked []sentence
	length := 0
	for _, s := range ranked {
		if len(picked) == maxSentences || s.score == 0 {
			break
		}
		add := len([]rune(s.text))
		if len(picked) > 0 {
			add++
		}
		if length+add > maxChars {
			continue
		}
		picked = append(picked, s)
		length += add
	}

	if len(picked) == 0 {
		return Result{Text: truncateWords(ranked[0].text, maxChars)}
	}

	sort.Slice(picked, func(a, b int) bool { return picked[a].pos < picked[b].pos })
	parts := make([]string, len(picked))
	for i, s := range picked {
		parts[i] = s.text
	}
	return Result{Text: strings.Join(parts, " ")}
}

// splitSentences breaks on ".", "!" or "?" followed by whitespace, except
// after known abbreviations and single initials.
func splitSentences(text string) []sentence {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)

	var out []sentence
	start := 0
	emit := func(end int) {
		s := strings.TrimSpace(string(r[start:end]))
		start = end
		if s == "" {
			return
		}
		out = append(out, sentence{pos: len(out), text: s, terms: contentTerms(s)})
	}

	for i, c := range r {
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(r) && r[i+1] != ' ' {
			continue
		}
		if c == '.' && isAbbreviation(r[start:i]) {
			continue
		}
		emit(i + 1)
	}
	emit(len(r))
	return out
}

func isAbbreviation(before []rune) bool {
	j := len(before)
	for j > 0 && (unicode.IsLetter(before[j-1]) || before[j-1] == '.') {
		j--
	}
	word := string(before[j:])
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		return true
	}
	return abbrev[strings.ToLower(word)]
}

func contentTerms(s string) []string {
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

func truncateWords(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars < 4 {
		return string(r[:max(maxChars, 0)])
	}
	cut := string(r[:maxChars-3])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}
