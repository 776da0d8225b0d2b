package dates

import (
	"testing"
	"time"

	"permitline/internal/domain"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ds(t time.Time) *string {
	s := t.Format(time.RFC3339)
	return &s
}

func TestDaysUntil(t *testing.T) {
	if _, ok := DaysUntil(nil, now); ok {
		t.Fatalf("expected no value for nil date")
	}
	empty := ""
	if _, ok := DaysUntil(&empty, now); ok {
		t.Fatalf("expected no value for empty date")
	}
	d, ok := DaysUntil(ds(now.AddDate(0, 0, 10)), now)
	if !ok || d != 10 {
		t.Fatalf("expected 10, got %d ok=%v", d, ok)
	}
	d, _ = DaysUntil(ds(now.AddDate(0, 0, -3)), now)
	if d != -3 {
		t.Fatalf("expected -3, got %d", d)
	}
	// bare dates parse too
	plain := "2024-06-11"
	d, ok = DaysUntil(&plain, now)
	if !ok || d != 10 {
		t.Fatalf("date-only: expected 10, got %d ok=%v", d, ok)
	}
}

func TestDaysSince(t *testing.T) {
	d, ok := DaysSince(ds(now.AddDate(0, 0, -20)), now)
	if !ok || d != 20 {
		t.Fatalf("expected 20, got %d ok=%v", d, ok)
	}
}

func TestIsExpiringSoon(t *testing.T) {
	cases := []struct {
		name string
		date *string
		want bool
	}{
		{"nil", nil, false},
		{"far future", ds(now.AddDate(0, 0, ExpiringSoonDays+1)), false},
		{"at threshold", ds(now.AddDate(0, 0, ExpiringSoonDays)), true},
		{"inside window", ds(now.AddDate(0, 0, 10)), true},
		{"already past", ds(now.AddDate(0, 0, -5)), true},
	}
	for _, tc := range cases {
		if got := IsExpiringSoon(tc.date, now); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsExpiringSoonStaysFlaggedPastDue(t *testing.T) {
	exp := ds(now.AddDate(0, 0, 10))
	if !IsExpiringSoon(exp, now) {
		t.Fatalf("expected flag inside window")
	}
	later := now.AddDate(0, 0, 40)
	if !IsExpiringSoon(exp, later) {
		t.Fatalf("expected flag to persist once past due")
	}
}

func TestIsPendingTooLong(t *testing.T) {
	old := ds(now.AddDate(0, 0, -(PendingTooLongDays + 6)))
	if !IsPendingTooLong(old, domain.StatusApplicationSubmitted, now) {
		t.Fatalf("expected pending-too-long for submitted")
	}
	if !IsPendingTooLong(old, domain.StatusPendingReview, now) {
		t.Fatalf("expected pending-too-long for pending_review")
	}
	for _, status := range []string{domain.StatusNotStarted, domain.StatusRevisionsRequired, domain.StatusApproved, domain.StatusExpired} {
		if IsPendingTooLong(old, status, now) {
			t.Errorf("status %s should never be pending-too-long", status)
		}
	}
	fresh := ds(now.AddDate(0, 0, -PendingTooLongDays))
	if IsPendingTooLong(fresh, domain.StatusPendingReview, now) {
		t.Fatalf("threshold is exclusive")
	}
	if IsPendingTooLong(nil, domain.StatusPendingReview, now) {
		t.Fatalf("nil application date should not flag")
	}
}

func TestEstimateApprovalDate(t *testing.T) {
	if _, ok := EstimateApprovalDate(nil, 14); ok {
		t.Fatalf("expected no estimate for nil date")
	}
	applied := now.AddDate(0, 0, -2)
	for _, days := range []int{0, 7, 14, 45} {
		est, ok := EstimateApprovalDate(ds(applied), days)
		if !ok {
			t.Fatalf("expected estimate")
		}
		if got := int(est.Sub(applied).Hours() / 24); got != days {
			t.Errorf("days=%d: estimate off by %d", days, got-days)
		}
	}
}
