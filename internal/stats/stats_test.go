package stats_test

import (
	"testing"
	"time"

	"permitline/internal/domain"
	"permitline/internal/stats"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func str(s string) *string { return &s }

func permit(status string) domain.Permit {
	return domain.Permit{ID: "p-" + status, Status: status}
}

func TestComputeCounts(t *testing.T) {
	expSoon := permit(domain.StatusApproved)
	expSoon.ExpirationDate = str("2024-06-15T00:00:00Z")

	stale := permit(domain.StatusApplicationSubmitted)
	stale.ApplicationDate = str("2024-05-01T00:00:00Z")

	revisions := permit(domain.StatusRevisionsRequired)

	withInspections := permit(domain.StatusPendingReview)
	withInspections.ApplicationDate = str("2024-05-30T00:00:00Z")
	withInspections.Inspections = []domain.Inspection{
		{ID: "i1", Type: "footing", Status: domain.InspectionScheduled},
		{ID: "i2", Type: "framing", Status: domain.InspectionScheduled},
		{ID: "i3", Type: "final", Status: domain.InspectionCompleted},
	}

	permits := []domain.Permit{
		permit(domain.StatusNotStarted),
		expSoon,
		stale,
		revisions,
		withInspections,
		permit(domain.StatusExpired),
	}

	o := stats.Compute(permits, now)
	if o.TotalPermits != 6 {
		t.Fatalf("total = %d", o.TotalPermits)
	}
	// not_started, approved, expired are out; submitted, revisions, pending stay
	if o.InProgress != 3 {
		t.Fatalf("in progress = %d", o.InProgress)
	}
	if o.PendingReview != 2 {
		t.Fatalf("pending review = %d", o.PendingReview)
	}
	// expiring-soon approved permit, stale submission, revisions_required
	if o.NeedsAttention != 3 {
		t.Fatalf("needs attention = %d", o.NeedsAttention)
	}
	if o.ScheduledInspections != 2 {
		t.Fatalf("scheduled inspections = %d", o.ScheduledInspections)
	}
}

func TestNeedsAttentionCountsOnce(t *testing.T) {
	// both expiring soon and pending too long, still a single permit
	p := permit(domain.StatusPendingReview)
	p.ApplicationDate = str("2024-04-01T00:00:00Z")
	p.ExpirationDate = str("2024-06-10T00:00:00Z")

	o := stats.Compute([]domain.Permit{p}, now)
	if o.NeedsAttention != 1 {
		t.Fatalf("needs attention = %d, want 1", o.NeedsAttention)
	}
}

func TestWarningPriority(t *testing.T) {
	p := permit(domain.StatusRevisionsRequired)
	if got := stats.WarningFor(p, now); got != "Revisions needed" {
		t.Fatalf("got %q", got)
	}

	p.Status = domain.StatusPendingReview
	p.ApplicationDate = str("2024-04-01T00:00:00Z")
	if got := stats.WarningFor(p, now); got != "Pending > 14 days" {
		t.Fatalf("got %q", got)
	}

	// expiration outranks the review delay
	p.ExpirationDate = str("2024-06-20T00:00:00Z")
	if got := stats.WarningFor(p, now); got != "Expiring soon" {
		t.Fatalf("got %q", got)
	}

	calm := permit(domain.StatusApproved)
	if got := stats.WarningFor(calm, now); got != "" {
		t.Fatalf("expected no warning, got %q", got)
	}
}

func TestWarningPastDueStillFlagged(t *testing.T) {
	p := permit(domain.StatusApproved)
	p.ExpirationDate = str("2024-05-01T00:00:00Z")
	if got := stats.WarningFor(p, now); got != "Expiring soon" {
		t.Fatalf("got %q", got)
	}
}
