// Package dates holds the pure temporal rules the tracker derives its
// warnings from. Every function takes the current moment explicitly so
// callers can pin the clock in tests.
package dates

import (
	"time"

	"permitline/internal/domain"
)

// Warning thresholds, in days. Global by choice: approval speed varies by
// municipality but the warning windows do not.
const (
	ExpiringSoonDays   = 30
	PendingTooLongDays = 14
)

// Parse accepts the two date encodings the tracker stores: RFC3339
// timestamps and bare YYYY-MM-DD dates.
func Parse(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the signed calendar-day difference from now to date.
// The second return is false when date is absent or unparseable.
func DaysUntil(date *string, now time.Time) (int, bool) {
	if date == nil || *date == "" {
		return 0, false
	}
	t, ok := Parse(*date)
	if !ok {
		return 0, false
	}
	return int(startOfDay(t).Sub(startOfDay(now)).Hours() / 24), true
}

// DaysSince returns the signed calendar-day difference from date to now.
func DaysSince(date *string, now time.Time) (int, bool) {
	d, ok := DaysUntil(date, now)
	if !ok {
		return 0, false
	}
	return -d, true
}

// IsExpiringSoon reports whether expirationDate falls inside the warning
// window. Past dates stay flagged: an overdue permit is still expiring.
func IsExpiringSoon(expirationDate *string, now time.Time) bool {
	d, ok := DaysUntil(expirationDate, now)
	return ok && d <= ExpiringSoonDays
}

// IsPendingTooLong reports whether a permit in a pending status has sat
// past the threshold since its application date.
func IsPendingTooLong(applicationDate *string, status string, now time.Time) bool {
	if status != domain.StatusApplicationSubmitted && status != domain.StatusPendingReview {
		return false
	}
	d, ok := DaysSince(applicationDate, now)
	return ok && d > PendingTooLongDays
}

// EstimateApprovalDate projects applicationDate forward by the
// municipality's average approval duration.
func EstimateApprovalDate(applicationDate *string, averageApprovalDays int) (time.Time, bool) {
	if applicationDate == nil || *applicationDate == "" {
		return time.Time{}, false
	}
	t, ok := Parse(*applicationDate)
	if !ok {
		return time.Time{}, false
	}
	return t.AddDate(0, 0, averageApprovalDays), true
}
