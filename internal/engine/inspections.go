package engine

import (
	"fmt"

	"github.com/google/uuid"

	"permitline/internal/domain"
)

// InspectionDraft carries the fields for a new inspection.
type InspectionDraft struct {
	Type          string
	Status        string
	ScheduledDate *string
	Inspector     *string
	Notes         string
}

// AddInspection appends a new inspection to the permit's list.
func (e *Engine) AddInspection(permitID string, draft InspectionDraft) (domain.Inspection, error) {
	if !domain.ValidInspectionType(draft.Type) {
		return domain.Inspection{}, fmt.Errorf("invalid inspection type %q", draft.Type)
	}
	if draft.Status == "" {
		draft.Status = domain.InspectionNotScheduled
	}
	if !domain.ValidInspectionStatus(draft.Status) {
		return domain.Inspection{}, fmt.Errorf("invalid inspection status %q", draft.Status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(permitID)
	if i < 0 {
		return domain.Inspection{}, ErrNotFound
	}
	insp := domain.Inspection{
		ID:            uuid.New().String(),
		Type:          draft.Type,
		Status:        draft.Status,
		ScheduledDate: draft.ScheduledDate,
		Inspector:     draft.Inspector,
		Notes:         draft.Notes,
	}
	p := &e.permits[i]
	p.Inspections = append(p.Inspections, insp)
	p.UpdatedAt = e.nowString()
	e.persistPermits()
	return insp, nil
}

// InspectionPatch names every field an inspection update may touch.
// Corrections replaces the whole list when present; it is meaningful only
// alongside a failed or conditional result but is never forcibly cleared.
type InspectionPatch struct {
	Type          *string
	Status        *string
	ScheduledDate *string
	CompletedDate *string
	Inspector     *string
	Result        *string
	Notes         *string
	Corrections   []string
}

// UpdateInspection merges the patch. It performs no implicit dating: a
// caller marking an inspection completed supplies the completed date
// itself (the CLI and server boundaries default it to now).
func (e *Engine) UpdateInspection(permitID, inspectionID string, patch InspectionPatch) (domain.Inspection, error) {
	if patch.Type != nil && !domain.ValidInspectionType(*patch.Type) {
		return domain.Inspection{}, fmt.Errorf("invalid inspection type %q", *patch.Type)
	}
	if patch.Status != nil && !domain.ValidInspectionStatus(*patch.Status) {
		return domain.Inspection{}, fmt.Errorf("invalid inspection status %q", *patch.Status)
	}
	if patch.Result != nil && *patch.Result != "" && !domain.ValidInspectionResult(*patch.Result) {
		return domain.Inspection{}, fmt.Errorf("invalid inspection result %q", *patch.Result)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(permitID)
	if i < 0 {
		return domain.Inspection{}, ErrNotFound
	}
	p := &e.permits[i]
	for j := range p.Inspections {
		if p.Inspections[j].ID != inspectionID {
			continue
		}
		insp := &p.Inspections[j]
		setString(&insp.Type, patch.Type)
		setString(&insp.Status, patch.Status)
		setDate(&insp.ScheduledDate, patch.ScheduledDate)
		setDate(&insp.CompletedDate, patch.CompletedDate)
		if patch.Inspector != nil {
			insp.Inspector = patch.Inspector
		}
		if patch.Result != nil {
			if *patch.Result == "" {
				insp.Result = nil
			} else {
				insp.Result = patch.Result
			}
		}
		setString(&insp.Notes, patch.Notes)
		if patch.Corrections != nil {
			insp.Corrections = patch.Corrections
		}
		p.UpdatedAt = e.nowString()
		e.persistPermits()
		return *insp, nil
	}
	return domain.Inspection{}, ErrNotFound
}

// DeleteInspection removes the inspection by id.
func (e *Engine) DeleteInspection(permitID, inspectionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(permitID)
	if i < 0 {
		return ErrNotFound
	}
	p := &e.permits[i]
	for j := range p.Inspections {
		if p.Inspections[j].ID == inspectionID {
			p.Inspections = append(p.Inspections[:j], p.Inspections[j+1:]...)
			p.UpdatedAt = e.nowString()
			e.persistPermits()
			return nil
		}
	}
	return ErrNotFound
}
