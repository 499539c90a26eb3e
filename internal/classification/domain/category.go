package domain

import "strings"

// Category is the label the model assigns to a message. Known values use the
// spelling the classification prompt asks for.
type Category string

const (
	CategoryDraft          Category = "Draft"
	CategoryPromotion      Category = "Promotion"
	CategoryInformation    Category = "Information"
	CategoryActionRequired Category = "Action Required"
	CategoryReceipts       Category = "Receipts"
	CategoryMeetingUpdate  Category = "Meeting Update"
	CategoryNone           Category = "None"
)

// Categories lists the closed category set in prompt order.
var Categories = []Category{
	CategoryDraft,
	CategoryPromotion,
	CategoryInformation,
	CategoryActionRequired,
	CategoryReceipts,
	CategoryMeetingUpdate,
	CategoryNone,
}

var categoryKeys = func() map[string]Category {
	keys := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		keys[categoryKey(string(c))] = c
	}
	return keys
}()

// categoryKey folds case and drops separators so "ActionRequired",
// "action_required" and "Action Required" compare equal.
func categoryKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseCategory maps raw model output to a known category. Unknown values are
// returned unchanged with ok == false.
func ParseCategory(raw string) (Category, bool) {
	if c, ok := categoryKeys[categoryKey(raw)]; ok {
		return c, true
	}
	return Category(strings.TrimSpace(raw)), false
}

// Known reports whether c belongs to the closed category set.
func (c Category) Known() bool {
	known, ok := categoryKeys[categoryKey(string(c))]
	return ok && known == c
}

// Provider label names applied per category.
const (
	LabelPromotion      = "Promotion"
	LabelInformation    = "Information"
	LabelToRespond      = "To Respond"
	LabelActionRequired = "Action Required"
	LabelReceipts       = "Receipts"
	LabelMeetingUpdate  = "Meeting Update"
	LabelOther          = "Other"
)

// LabelColor is the background/text pair used when a label is created.
type LabelColor struct {
	Background string
	Text       string
}

var labelColors = map[string]string{
	LabelPromotion:      "#3c78d8",
	LabelInformation:    "#16a766",
	LabelToRespond:      "#fb4c2f",
	LabelActionRequired: "#ffad47",
	LabelReceipts:       "#d5ae49",
	LabelMeetingUpdate:  "#a4c2f4",
	LabelOther:          "#666666",
}

// ColorForLabel returns the color a newly created label should get.
func ColorForLabel(name string) LabelColor {
	bg, ok := labelColors[name]
	if !ok {
		bg = "#3c78d8"
	}
	return LabelColor{Background: bg, Text: "#ffffff"}
}
