package usecase

import (
	"strconv"
	"strings"
	"time"

	"inboxpilot-backend/internal/classification/domain"
)

var invalidExpirations = map[string]bool{
	"":              true,
	"n/a":           true,
	"not specified": true,
	"today":         true,
	"tonight":       true,
}

var expirationLayouts = []string{"Jan 2, 2006", "January 2, 2006"}

// ParseExpiration reads a promotion expiry. Accepted forms, tried in order:
// mm/dd/yyyy, "Jan 2, 2006", "January 2, 2006".
func ParseExpiration(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if invalidExpirations[strings.ToLower(s)] {
		return time.Time{}, false
	}

	if parts := strings.Split(s, "/"); len(parts) == 3 {
		month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes 02/30 into March; treat that as invalid.
		if t.Year() != year || int(t.Month()) != month || t.Day() != day {
			return time.Time{}, false
		}
		return t, true
	}

	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SweepPromotions keeps the promotions whose parseable expiry is not before
// now and returns the new list and the number dropped. A date-only expiry
// means midnight UTC of that day.
func SweepPromotions(entries []domain.Entry, now time.Time) ([]domain.Entry, int) {
	kept := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		exp, ok := ParseExpiration(e.Content.Expiration.String())
		if !ok || exp.Before(now) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(entries) - len(kept)
}

// sweepBuckets applies SweepPromotions to the promotions bucket in place.
func sweepBuckets(b *domain.Buckets, now time.Time) int {
	kept, removed := SweepPromotions(b.Promotions, now)
	b.Promotions = kept
	return removed
}
