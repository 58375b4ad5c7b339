// Package format converts the light Markdown used in bot replies into
// Telegram message entities.
package format

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// uses for entity offsets.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := len(utf16.Encode([]rune{r})); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

var (
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)

	// Alternatives are tried left to right; the group index selects the entity.
	inlinePattern = regexp.MustCompile("`([^`\n]+)`|\\*\\*(.+?)\\*\\*|__(.+?)__|\\*([^*\n]+)\\*|_([^_\n]+)_")
	inlineKinds   = []string{"code", "bold", "bold", "italic", "italic"}
)

// ParseMarkdown strips the markers from text and returns the matching
// entities. Supported: **bold**, __bold__, *italic*, _italic_, `code` and
// # headers (rendered bold). Underscores inside words stay literal, and
// nothing is parsed inside code spans.
func ParseMarkdown(text string) ParseResult {
	text = headerPattern.ReplaceAllString(text, "**$1**")

	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		offset   int
		pos      int
	)
	for pos < len(text) {
		loc := inlinePattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		if text[start] == '_' && !wordBoundary(text, start, end) {
			literal := text[pos : start+1]
			out.WriteString(literal)
			offset += UTF16Len(literal)
			pos = start + 1
			continue
		}

		var kind, inner string
		for i, k := range inlineKinds {
			if loc[2+2*i] != -1 {
				kind, inner = k, text[pos+loc[2+2*i]:pos+loc[3+2*i]]
				break
			}
		}

		before := text[pos:start]
		out.WriteString(before)
		offset += UTF16Len(before)

		length := UTF16Len(inner)
		entities = append(entities, tgbotapi.MessageEntity{Type: kind, Offset: offset, Length: length})
		out.WriteString(inner)
		offset += length
		pos = end
	}
	out.WriteString(text[pos:])

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}

// wordBoundary reports whether the span text[start:end] is not glued to a
// letter or digit on either side.
func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWord(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWord(r) {
			return false
		}
	}
	return true
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
