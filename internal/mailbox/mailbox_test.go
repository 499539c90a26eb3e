package mailbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeDraftRoundTrip(t *testing.T) {
	raw, err := ComposeDraft("me@example.com", DraftRequest{
		To:        "Alice <alice@example.com>",
		Cc:        []string{"bob@example.com"},
		Subject:   "Re: Lunch",
		Body:      "See you at noon.",
		InReplyTo: "<abc@mail.example.com>",
	})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "In-Reply-To: <abc@mail.example.com>")
	assert.Contains(t, s, "References: <abc@mail.example.com>")
	assert.Contains(t, s, "bob@example.com")

	msg, err := ParseRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "Re: Lunch", msg.Subject)
	assert.Contains(t, msg.From, "me@example.com")
	assert.Contains(t, msg.Body, "See you at noon.")
	assert.False(t, msg.IsHTML)
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestParseRawPrefersHTML(t *testing.T) {
	raw := "From: Shop <deals@shop.example>\r\n" +
		"Subject: =?utf-8?q?50=25_off?=\r\n" +
		"Message-Id: <m1@shop.example>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=xyz\r\n" +
		"\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--xyz--\r\n"

	msg, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "50% off", msg.Subject)
	assert.Equal(t, "Shop <deals@shop.example>", msg.From)
	assert.Equal(t, "<m1@shop.example>", msg.MessageID)
	assert.True(t, msg.IsHTML)
	assert.Contains(t, msg.Body, "html body")
}

func TestPlainText(t *testing.T) {
	msg := &Message{
		IsHTML: true,
		Body:   "<html><head><title>x</title></head><body><p>Hello&nbsp;there</p><script>a()</script><div>Bye</div></body></html>",
	}
	assert.Equal(t, "Hello there\nBye", PlainText(msg))

	assert.Equal(t, "one two\nthree", PlainText(&Message{Body: "one   two\r\n\r\n  three  "}))
	assert.Equal(t, "", PlainText(nil))
}

func TestRecipients(t *testing.T) {
	got := Recipients(OutgoingMessage{
		To: []string{"Bob <bob@example.com>", "a@example.com, c@example.com"},
		Cc: []string{"not an address"},
	})
	assert.Equal(t, []string{"bob@example.com", "a@example.com", "c@example.com", "not an address"}, got)
}

func TestOpenersDispatchOnKind(t *testing.T) {
	openers := Openers{KindIMAP: nil}

	_, err := openers.Open(context.Background(), Credentials{Kind: KindIMAP})
	assert.Error(t, err)

	_, err = openers.Open(context.Background(), Credentials{Kind: "exchange"})
	assert.Error(t, err)
}
