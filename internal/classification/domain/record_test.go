package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUnmarshalLenient(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		emailID  string
		category Category
		sender   string
	}{
		{
			name:     "canonical",
			input:    `{"emailId":"m1","category":"Action Required","sender":{"name":"Ann","type":"person"}}`,
			emailID:  "m1",
			category: CategoryActionRequired,
			sender:   "Ann",
		},
		{
			name:     "snake case id and category",
			input:    `{"email_id":" m2 ","category":"meeting_update","sender":"Bob"}`,
			emailID:  "m2",
			category: CategoryMeetingUpdate,
			sender:   "Bob",
		},
		{
			name:     "numeric id",
			input:    `{"emailId":42,"category":"receipts"}`,
			emailID:  "42",
			category: CategoryReceipts,
		},
		{
			name:     "unknown category kept verbatim",
			input:    `{"emailId":"m3","category":"Newsletter"}`,
			emailID:  "m3",
			category: Category("Newsletter"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			require.NoError(t, json.Unmarshal([]byte(tt.input), &rec))
			assert.Equal(t, tt.emailID, rec.EmailID)
			assert.Equal(t, tt.category, rec.Category)
			assert.Equal(t, tt.sender, rec.Sender.Name)
		})
	}
}

func TestTextAcceptsArrays(t *testing.T) {
	var c Content
	require.NoError(t, json.Unmarshal([]byte(`{"actionPoints":["sign form","pay fee"],"totalAmount":12.5,"summary":null}`), &c))
	assert.Equal(t, "sign form\npay fee", c.ActionPoints.String())
	assert.Equal(t, "12.5", c.TotalAmount.String())
	assert.Equal(t, "", c.Summary.String())
}

func TestCategoryKnown(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Known(), c)
	}
	assert.False(t, Category("Spam").Known())
	assert.False(t, Category("action required").Known())

	c, ok := ParseCategory("  PROMOTION ")
	assert.True(t, ok)
	assert.Equal(t, CategoryPromotion, c)
}

func TestColorForLabel(t *testing.T) {
	def := ColorForLabel("Something Else")
	assert.Equal(t, "#3c78d8", def.Background)
	assert.Equal(t, "#ffffff", def.Text)
	assert.NotEmpty(t, ColorForLabel(LabelToRespond).Background)
}
