package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// ComposeDraft renders a plain-text reply as an RFC 5322 message.
func ComposeDraft(from string, req DraftRequest) ([]byte, error) {
	var h mail.Header
	setAddresses(&h, "To", []string{req.To})
	setAddresses(&h, "Cc", req.Cc)
	if req.InReplyTo != "" {
		h.Set("In-Reply-To", req.InReplyTo)
		h.Set("References", req.InReplyTo)
	}
	return compose(from, h, req.Subject, req.Body)
}

// ComposeMessage renders an outgoing message.
func ComposeMessage(from string, msg OutgoingMessage) ([]byte, error) {
	var h mail.Header
	setAddresses(&h, "To", msg.To)
	setAddresses(&h, "Cc", msg.Cc)
	return compose(from, h, msg.Subject, msg.Body)
}

func compose(from string, h mail.Header, subject, body string) ([]byte, error) {
	if from != "" {
		setAddresses(&h, "From", []string{from})
	}
	h.SetDate(time.Now())
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setAddresses parses each value as an address list. Values that do not
// parse are kept verbatim.
func setAddresses(h *mail.Header, key string, values []string) {
	var list []*mail.Address
	var raw []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parsed, err := mail.ParseAddressList(v)
		if err != nil {
			raw = append(raw, v)
			continue
		}
		list = append(list, parsed...)
	}
	switch {
	case len(raw) > 0:
		for _, a := range list {
			raw = append(raw, a.String())
		}
		h.Set(key, strings.Join(raw, ", "))
	case len(list) > 0:
		h.SetAddressList(key, list)
	}
}

// Recipients returns the bare addresses of an outgoing message.
func Recipients(msg OutgoingMessage) []string {
	var out []string
	for _, v := range append(append([]string(nil), msg.To...), msg.Cc...) {
		parsed, err := mail.ParseAddressList(v)
		if err != nil {
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
			continue
		}
		for _, a := range parsed {
			out = append(out, a.Address)
		}
	}
	return out
}
