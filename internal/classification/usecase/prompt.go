package usecase

import (
	"fmt"
	"strings"

	"inboxpilot-backend/internal/mailbox"
)

// maxPromptBody caps the message text sent to the model, in runes.
const maxPromptBody = 6000

const classificationFormats = `Choose exactly one of the formats below and fill it in.

1. The email expects a personal reply:
{"emailId": "<id>", "category": "Draft", "sender": {"name": "<name>", "type": "<person|company>"}, "content": {"replySubject": "<subject>", "draftContent": "<reply written in the client's style>"}}

2. The email is a promotion or offer:
{"emailId": "<id>", "category": "Promotion", "sender": {"name": "<name>", "type": "company"}, "content": {"title": "<offer>", "details": "<details>", "expiration": "<mm/dd/yyyy or N/A>"}}

3. The email is purely informative:
{"emailId": "<id>", "category": "Information", "sender": {"name": "<name>", "type": "<person|company>"}, "content": {"summary": "<summary>"}}

4. The email asks the client to do something:
{"emailId": "<id>", "category": "Action Required", "sender": {"name": "<name>", "type": "<person|company>"}, "content": {"actionPoints": ["<action>"], "summary": "<summary>"}}

5. The email is a receipt or order confirmation:
{"emailId": "<id>", "category": "Receipts", "sender": {"name": "<name>", "type": "company"}, "content": {"orderNumber": "<number>", "totalAmount": "<amount>", "summary": "<summary>"}}

6. The email changes a meeting:
{"emailId": "<id>", "category": "Meeting Update", "sender": {"name": "<name>", "type": "<person|company>"}, "content": {"meetingSubject": "<subject>", "oldDateTime": "<when>", "oldLocation": "<where>", "newDateTime": "<when>", "newLocation": "<where>", "additionalNotes": "<notes>", "summary": "<summary>"}}

7. None of the above:
{"emailId": "<id>", "category": "None", "sender": {"name": "<name>", "type": "<person|company>"}, "content": {"summary": "<summary>"}}

The emailId must be copied verbatim from the email below.`

// BuildClassificationPrompt renders the single prompt used by every sync
// trigger.
func BuildClassificationPrompt(styleProfile string, msg *mailbox.Message, body string) string {
	profile := strings.TrimSpace(styleProfile)
	if profile == "" {
		profile = "No previous analysis available."
	}

	var b strings.Builder
	b.WriteString("You are an assistant that analyzes and writes emails mimicking your client.\n")
	b.WriteString("Previous analysis:\n")
	b.WriteString(profile)
	b.WriteString("\n\n")
	b.WriteString(classificationFormats)
	b.WriteString("\n\nEmail:\n")
	fmt.Fprintf(&b, "Email ID: %s\n", msg.ID)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Body: %s\n", truncateRunes(body, maxPromptBody))
	fmt.Fprintf(&b, "Thread ID: %s\n", msg.ThreadID)
	b.WriteString("\nRETURN ONLY JSON:")
	return b.String()
}

// maxStyleSample caps the sent-mail text used for style analysis, in runes.
const maxStyleSample = 4000

// BuildStylePrompt asks for a writing-style profile from sent mail excerpts.
func BuildStylePrompt(snippets []string) string {
	sample := truncateRunes(strings.Join(snippets, "\n"), maxStyleSample)
	return "Analyze the following excerpts from emails the user sent over the past years. " +
		"Describe their writing style, including usual greetings and sign-offs, tone and formality, " +
		"and any hints of occupation, hobbies or interests. " +
		"Write a profile another model can follow to draft replies in the same voice:\n\n" +
		sample + "\n\nProfile:"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
