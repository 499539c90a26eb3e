package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseRaw reads an RFC 5322 message. The HTML part wins over plain text,
// matching what the Gmail API provider returns.
func ParseRaw(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mailbox: parse message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].String()
		if from[0].Name != "" {
			msg.From = fmt.Sprintf("%s <%s>", from[0].Name, from[0].Address)
		}
	} else {
		msg.From = mr.Header.Get("From")
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}
	msg.MessageID = mr.Header.Get("Message-Id")

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever was read before a broken part.
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch ct {
		case "text/html":
			if html == "" {
				html = string(b)
			}
		case "text/plain", "":
			if plain == "" {
				plain = string(b)
			}
		}
	}

	if html != "" {
		msg.Body, msg.IsHTML = html, true
	} else {
		msg.Body = plain
	}
	return msg, nil
}
