package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"inboxpilot-backend/internal/classification/domain"
)

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")

// ExtractRecord pulls the classification record out of free-form model
// output. The first fenced block wins when there is one; otherwise the text
// between the first '{' and the last '}' is parsed.
func ExtractRecord(output, expectedEmailID string) (*domain.Record, error) {
	text := output
	if m := fenceRe.FindStringSubmatch(output); m != nil {
		text = m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, domain.ErrMalformedOutput
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	if rec.EmailID != expectedEmailID {
		return nil, fmt.Errorf("%w: got %q, want %q", domain.ErrIDMismatch, rec.EmailID, expectedEmailID)
	}
	return &rec, nil
}
