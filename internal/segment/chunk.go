package segment

import "unicode/utf8"

const (
	// DefaultTargetChars is the chunk size the worker aims for when a
	// request leaves it unset.
	DefaultTargetChars = 420
	// DefaultMaxChars is the hard chunk limit the worker uses when a
	// request leaves it unset.
	DefaultMaxChars = 720
)

// BuildChunks packs sentences greedily into chunks. A chunk is flushed as
// soon as appending a sentence makes it reach targetChars, or when the next
// sentence would push it past maxChars. A sentence longer than maxChars is
// hard-split into slices of exactly maxChars runes; the shorter remainder
// starts the next chunk. Lengths are counted in runes.
func BuildChunks(sentences []string, targetChars, maxChars int) []string {
	var chunks []string
	buildChunks(sentences, targetChars, maxChars, func(c string) bool {
		chunks = append(chunks, c)
		return true
	})
	return chunks
}

// buildChunks streams chunks to emit and stops early when emit returns
// false.
func buildChunks(sentences []string, targetChars, maxChars int, emit func(string) bool) bool {
	targetChars, maxChars = clampLimits(targetChars, maxChars)

	current := ""
	flush := func() bool {
		if current == "" {
			return true
		}
		c := current
		current = ""
		return emit(c)
	}

	for _, sentence := range sentences {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if runeLen(candidate) <= maxChars {
			current = candidate
			if runeLen(current) >= targetChars && !flush() {
				return false
			}
			continue
		}

		if !flush() {
			return false
		}
		if runeLen(sentence) <= maxChars {
			current = sentence
			continue
		}

		rest := sentence
		for runeLen(rest) > maxChars {
			head, tail := splitAt(rest, maxChars)
			if !emit(head) {
				return false
			}
			rest = tail
		}
		current = rest
	}
	return flush()
}

func clampLimits(targetChars, maxChars int) (int, int) {
	if targetChars <= 0 {
		targetChars = DefaultTargetChars
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if maxChars < targetChars {
		maxChars = targetChars
	}
	return targetChars, maxChars
}

// splitAt cuts s after maxChars runes. Nothing is dropped: head+tail == s.
func splitAt(s string, maxChars int) (string, string) {
	cut := byteOffset(s, maxChars)
	return s[:cut], s[cut:]
}

// byteOffset returns the byte offset of the n-th rune of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
