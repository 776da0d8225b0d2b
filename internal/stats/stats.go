// Package stats derives the dashboard readouts: aggregate counts over
// the permit collection and per-permit temporal warnings.
package stats

import (
	"fmt"
	"time"

	"permitline/internal/dates"
	"permitline/internal/domain"
)

// Overview is the aggregate dashboard block.
type Overview struct {
	TotalPermits         int `json:"totalPermits"`
	InProgress           int `json:"inProgress"`
	PendingReview        int `json:"pendingReview"`
	NeedsAttention       int `json:"needsAttention"`
	ScheduledInspections int `json:"scheduledInspections"`
}

func inProgress(status string) bool {
	switch status {
	case domain.StatusApproved, domain.StatusExpired, domain.StatusNotStarted:
		return false
	}
	return true
}

func pendingReview(status string) bool {
	return status == domain.StatusApplicationSubmitted || status == domain.StatusPendingReview
}

// NeedsAttention reports whether any warning condition holds for the
// permit. A permit with several conditions still counts once.
func NeedsAttention(p domain.Permit, now time.Time) bool {
	return dates.IsExpiringSoon(p.ExpirationDate, now) ||
		dates.IsPendingTooLong(p.ApplicationDate, p.Status, now) ||
		p.Status == domain.StatusRevisionsRequired
}

// Compute walks the collection once and tallies every counter.
func Compute(permits []domain.Permit, now time.Time) Overview {
	var o Overview
	o.TotalPermits = len(permits)
	for _, p := range permits {
		if inProgress(p.Status) {
			o.InProgress++
		}
		if pendingReview(p.Status) {
			o.PendingReview++
		}
		if NeedsAttention(p, now) {
			o.NeedsAttention++
		}
		for _, insp := range p.Inspections {
			if insp.Status == domain.InspectionScheduled {
				o.ScheduledInspections++
			}
		}
	}
	return o
}

// WarningFor renders the single highest-priority warning for a permit,
// or "" when none applies. Expiration outranks review delay, which
// outranks requested revisions.
func WarningFor(p domain.Permit, now time.Time) string {
	if dates.IsExpiringSoon(p.ExpirationDate, now) {
		return "Expiring soon"
	}
	if dates.IsPendingTooLong(p.ApplicationDate, p.Status, now) {
		return fmt.Sprintf("Pending > %d days", dates.PendingTooLongDays)
	}
	if p.Status == domain.StatusRevisionsRequired {
		return "Revisions needed"
	}
	return ""
}
