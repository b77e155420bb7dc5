package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Splitter splits normalized text into sentences. Sentences are returned
// trimmed; joining them with single spaces must reproduce the input.
type Splitter func(text string) []string

// Sentences splits text with Unicode sentence boundary rules and re-joins
// breaks that follow a title abbreviation. It falls back to SplitRegexp
// when no boundary is found.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		raw     []string
		pending strings.Builder
	)
	state := -1
	rest := text
	for len(rest) > 0 {
		var s string
		s, rest, state = uniseg.FirstSentenceInString(rest, state)
		pending.WriteString(s)
		// a break without trailing space ("end.Next") stays glued so the
		// sentences still join back into the input
		if rest != "" && !endsWithSpace(s) {
			continue
		}
		if t := strings.TrimSpace(pending.String()); t != "" {
			raw = append(raw, t)
		}
		pending.Reset()
	}
	if len(raw) == 0 {
		return SplitRegexp(text)
	}
	return mergeAbbreviations(raw)
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`)

// SplitRegexp splits after runs of terminal punctuation followed by
// whitespace.
func SplitRegexp(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// titleAbbreviations precede a name and never end a sentence.
var titleAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "rev": true, "gen": true,
	"col": true, "capt": true, "lt": true, "sgt": true, "hon": true,
	"e.g": true, "i.e": true, "vs": true, "cf": true, "no": true,
}

func mergeAbbreviations(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if n := len(out); n > 0 && endsWithTitle(out[n-1]) {
			out[n-1] += " " + s
			continue
		}
		out = append(out, s)
	}
	return out
}

func endsWithTitle(s string) bool {
	if !strings.HasSuffix(s, ".") {
		return false
	}
	word := s[:len(s)-1]
	if i := strings.LastIndexByte(word, ' '); i >= 0 {
		word = word[i+1:]
	}
	word = strings.TrimLeft(word, `"'“‘(`)
	return titleAbbreviations[strings.ToLower(word)]
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}
