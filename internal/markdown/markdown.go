// Package markdown formats text for Telegram's MarkdownV2 parse mode.
package markdown

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageRunes is Telegram's limit for a single text message.
const MaxMessageRunes = 4096

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const specialChars = `\_*[]()~` + "`" + `>#+-=|{}.!`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var specialLookup = func() [256]bool {
	var m [256]bool
	for i := range len(specialChars) {
		m[specialChars[i]] = true
	}
	return m
}()

// EscapeV2 escapes every MarkdownV2 special character in input.
func EscapeV2(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if specialLookup[input[i]] {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if specialLookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func Bold(input string) string {
	return "*" + EscapeV2(input) + "*"
}

// Split cuts text into chunks of at most limit runes, preferring paragraph
// and line breaks, then spaces. Chunks are returned trimmed.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}

	var chunks []string

	for utf8.RuneCountInString(text) > limit {
		cut := cutIndex(text, limit)

		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}

	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

// cutIndex returns a byte offset at or before limit runes.
func cutIndex(text string, limit int) int {
	hard := len(text)
	runes := 0
	for i := range text {
		if runes == limit {
			hard = i
			break
		}
		runes++
	}

	window := text[:hard]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i
		}
	}

	return hard
}
