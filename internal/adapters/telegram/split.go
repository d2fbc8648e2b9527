package telegram

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit — лимит длины сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage делит отчёт на сообщения Telegram.
func SplitMessage(text string) []string {
	return Split(text, MessageLimit)
}

// Split делит текст на куски не длиннее limit символов. Место разреза ищется
// с конца окна: пустая строка между блоками отчёта, затем перевод строки,
// затем пробел. Если их нет, кусок режется ровно по лимиту.
func Split(text string, limit int) []string {
	rest := strings.TrimSpace(text)
	if rest == "" {
		return nil
	}
	if limit <= 0 {
		limit = MessageLimit
	}

	var parts []string
	for utf8.RuneCountInString(rest) > limit {
		window := string([]rune(rest)[:limit])
		cut := cutIndex(window)
		if chunk := strings.TrimRight(window[:cut], " \n"); chunk != "" {
			parts = append(parts, chunk)
		}
		rest = strings.TrimLeft(rest[cut:], "\n")
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

var cutSeparators = []string{"\n\n", "\n", " "}

// cutIndex возвращает байтовую длину первого куска окна, разделитель входит в кусок.
func cutIndex(window string) int {
	for _, sep := range cutSeparators {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	return len(window)
}
