package imlayout

import (
	"strings"

	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

// Wrap breaks text into lines no wider than maxWidth.
//
// Newlines always break. Within a paragraph words break greedily on single spaces; runs of
// spaces are kept and trailing spaces hang past the edge without wrapping. A word that
// cannot fit on a line of its own is broken between runes.
//
// Appending to text never reduces the number of lines.
func Wrap(ruler *textmeasure.Ruler, f textmeasure.Font, text string, maxWidth float64) []string {
	var lines []string
	for _, p := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(ruler, f, p, maxWidth)...)
	}
	return lines
}

func wrapParagraph(ruler *textmeasure.Ruler, f textmeasure.Font, p string, maxWidth float64) []string {
	fits := func(s string) bool {
		return ruler.MeasureWidth(f, strings.TrimRight(s, " ")) <= maxWidth
	}

	var lines []string
	line := ""
	for i, word := range strings.Split(p, " ") {
		if i > 0 {
			candidate := line + " " + word
			if fits(candidate) {
				line = candidate
				continue
			}
			lines = append(lines, line)
		}
		if fits(word) {
			line = word
			continue
		}
		chunks := breakWord(ruler, f, word, maxWidth)
		lines = append(lines, chunks[:len(chunks)-1]...)
		line = chunks[len(chunks)-1]
	}
	return append(lines, line)
}

// breakWord splits word into chunks that each fit in maxWidth. Every chunk holds at least
// one rune.
func breakWord(ruler *textmeasure.Ruler, f textmeasure.Font, word string, maxWidth float64) []string {
	var chunks []string
	chunk := ""
	for _, r := range word {
		next := chunk + string(r)
		if chunk != "" && ruler.MeasureWidth(f, next) > maxWidth {
			chunks = append(chunks, chunk)
			next = string(r)
		}
		chunk = next
	}
	return append(chunks, chunk)
}
