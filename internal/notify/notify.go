// Package notify holds the collaborators a firing reminder talks to: the text
// polisher, the on-screen notification surface, the speech callback and the
// external push channels.
package notify

import (
	"context"
	"strings"
	"unicode/utf8"
)

// PushTitle is the title used for every external push.
const PushTitle = "日程提醒"

// Polisher rewrites a prompt into a spoken sentence. Best-effort.
type Polisher interface {
	Polish(ctx context.Context, prompt string) (string, error)
}

// Notifier shows text on a process-visible surface. Fire-and-forget.
type Notifier interface {
	Show(text string)
}

// Speaker plays text as audio.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// PushChannel delivers an external notification. Returns true on delivery.
type PushChannel interface {
	Send(ctx context.Context, title, body string) bool
}

// Fallback is the templated reminder text used when polishing is unavailable.
func Fallback(task string) string {
	return "提醒：" + task
}

// PolishPrompt is the instruction handed to the polisher for a task.
func PolishPrompt(task string) string {
	return "请以专业秘书的口吻，将以下提醒内容润色成完整的提醒语句。要求：1)必须包含完整的提醒内容 2)语气礼貌专业 3)直接输出润色后的语句，不要有任何解释或多余文字。提醒内容：" + task
}

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
	'「':  '」',
	'『':  '』',
	'«':  '»',
}

const quoteChars = "\"'“”‘’「」『』«»"

// CleanPolished strips one matching pair of wrapping quotes, or otherwise any
// stray quote characters at either end.
func CleanPolished(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	first, firstSize := utf8.DecodeRuneInString(text)
	last, lastSize := utf8.DecodeLastRuneInString(text)
	if closing, ok := quotePairs[first]; ok && closing == last && len(text) >= firstSize+lastSize {
		return strings.TrimSpace(text[firstSize : len(text)-lastSize])
	}
	return strings.TrimSpace(strings.Trim(text, quoteChars))
}

// Compose produces the reminder text for a task, asking the polisher when one
// is available and falling back to the template on error or empty output.
func Compose(ctx context.Context, p Polisher, task string) (string, error) {
	if p == nil {
		return Fallback(task), nil
	}
	out, err := p.Polish(ctx, PolishPrompt(task))
	if err != nil {
		return Fallback(task), err
	}
	if cleaned := CleanPolished(out); cleaned != "" {
		return cleaned, nil
	}
	return Fallback(task), nil
}
