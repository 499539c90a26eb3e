package mailbox

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockRe = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	breakRe = regexp.MustCompile(`(?i)<(br|/p|/div|/tr|/li|/h[1-6])[^>]*>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
)

// PlainText returns the message body with markup removed and whitespace
// collapsed.
func PlainText(msg *Message) string {
	if msg == nil {
		return ""
	}
	body := msg.Body
	if msg.IsHTML || looksLikeHTML(body) {
		body = StripHTML(body)
	}
	return collapse(body)
}

// StripHTML removes tags and decodes entities.
func StripHTML(s string) string {
	s = blockRe.ReplaceAllString(s, " ")
	s = breakRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<div")
}

// collapse squeezes runs of spaces inside lines and drops blank lines.
func collapse(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
