// Package engine owns the permit and municipality collections and every
// mutation against them. State is held in memory and written through to the
// snapshot store after each successful mutation.
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"permitline/internal/domain"
	"permitline/internal/snapshot"
)

var ErrNotFound = errors.New("not found")

type Engine struct {
	Store  snapshot.Store
	Logger *log.Logger
	Now    func() time.Time

	mu             sync.Mutex
	permits        []domain.Permit
	municipalities []domain.Municipality
	saveErr        error
}

// New loads both collections from the store. An empty municipality
// collection is seeded from seed so the tool is usable without setup.
func New(store snapshot.Store, seed []domain.Municipality) (*Engine, error) {
	e := &Engine{
		Store:  store,
		Logger: log.Default(),
		Now:    time.Now,
	}
	permits, err := store.LoadPermits()
	if err != nil {
		return nil, fmt.Errorf("load permits: %w", err)
	}
	munis, err := store.LoadMunicipalities()
	if err != nil {
		return nil, fmt.Errorf("load municipalities: %w", err)
	}
	e.permits = permits
	e.municipalities = munis
	if len(e.municipalities) == 0 && len(seed) > 0 {
		e.municipalities = append([]domain.Municipality(nil), seed...)
		e.persistMunicipalities()
	}
	return e, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// persistPermits writes the permit collection through to the store. A write
// failure leaves the in-memory state authoritative: it is logged and kept
// for LastSaveError, never returned to the caller.
func (e *Engine) persistPermits() {
	if err := e.Store.SavePermits(e.permits); err != nil {
		e.logger().Printf("WARNING: permit snapshot not saved; changes may not survive a reload: %v", err)
		e.saveErr = err
		return
	}
	e.saveErr = nil
}

func (e *Engine) persistMunicipalities() {
	if err := e.Store.SaveMunicipalities(e.municipalities); err != nil {
		e.logger().Printf("WARNING: municipality snapshot not saved; changes may not survive a reload: %v", err)
		e.saveErr = err
		return
	}
	e.saveErr = nil
}

// LastSaveError reports the degraded-persistence state: non-nil when the
// most recent snapshot write failed.
func (e *Engine) LastSaveError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveErr
}

func (e *Engine) findPermit(id string) int {
	for i := range e.permits {
		if e.permits[i].ID == id {
			return i
		}
	}
	return -1
}

// PermitDraft carries the operator-entered fields for a new permit.
type PermitDraft struct {
	ProjectID       string
	ProjectAddress  string
	CustomerName    string
	PermitNumber    string
	PermitType      string
	Municipality    string
	Status          string
	ApplicationDate *string
	ApprovalDate    *string
	ExpirationDate  *string
	ApplicationFee  *float64
	FeePaid         bool
	FeePaymentDate  *string
	Notes           string
	ContactName     string
	ContactPhone    string
	ContactEmail    string
}

// CreatePermit assigns an id and timestamps, starts the status history at
// the draft's status, and persists.
func (e *Engine) CreatePermit(draft PermitDraft) (domain.Permit, error) {
	if draft.PermitType == "" {
		draft.PermitType = "deck"
	}
	if !domain.ValidPermitType(draft.PermitType) {
		return domain.Permit{}, fmt.Errorf("invalid permit type %q", draft.PermitType)
	}
	if draft.Status == "" {
		draft.Status = domain.StatusNotStarted
	}
	if !domain.ValidPermitStatus(draft.Status) {
		return domain.Permit{}, fmt.Errorf("invalid permit status %q", draft.Status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.nowString()
	p := domain.Permit{
		ID:              uuid.New().String(),
		ProjectID:       draft.ProjectID,
		ProjectAddress:  draft.ProjectAddress,
		CustomerName:    draft.CustomerName,
		PermitNumber:    draft.PermitNumber,
		PermitType:      draft.PermitType,
		Municipality:    draft.Municipality,
		Status:          draft.Status,
		StatusHistory:   []domain.StatusUpdate{{Status: draft.Status, Timestamp: now}},
		ApplicationDate: draft.ApplicationDate,
		ApprovalDate:    draft.ApprovalDate,
		ExpirationDate:  draft.ExpirationDate,
		ApplicationFee:  draft.ApplicationFee,
		FeePaid:         draft.FeePaid,
		FeePaymentDate:  draft.FeePaymentDate,
		Documents:       []domain.Document{},
		Inspections:     []domain.Inspection{},
		Notes:           draft.Notes,
		ContactName:     draft.ContactName,
		ContactPhone:    draft.ContactPhone,
		ContactEmail:    draft.ContactEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e.permits = append([]domain.Permit{p}, e.permits...)
	e.persistPermits()
	return p, nil
}

// GetPermit returns the permit by id.
func (e *Engine) GetPermit(id string) (domain.Permit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(id)
	if i < 0 {
		return domain.Permit{}, ErrNotFound
	}
	return e.permits[i], nil
}

// ListPermits returns permits, optionally filtered by status.
func (e *Engine) ListPermits(status string) []domain.Permit {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Permit, 0, len(e.permits))
	for _, p := range e.permits {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PermitPatch names every non-workflow field an update may touch. Status is
// deliberately absent: status changes go through TransitionStatus so the
// history stays complete.
type PermitPatch struct {
	ProjectID       *string
	ProjectAddress  *string
	CustomerName    *string
	PermitNumber    *string
	PermitType      *string
	Municipality    *string
	ApplicationDate *string
	ApprovalDate    *string
	ExpirationDate  *string
	ApplicationFee  *float64
	FeePaid         *bool
	FeePaymentDate  *string
	Notes           *string
	ContactName     *string
	ContactPhone    *string
	ContactEmail    *string
}

// UpdatePermit merges the patch and refreshes UpdatedAt. It never touches
// Status or StatusHistory.
func (e *Engine) UpdatePermit(id string, patch PermitPatch) (domain.Permit, error) {
	if patch.PermitType != nil && !domain.ValidPermitType(*patch.PermitType) {
		return domain.Permit{}, fmt.Errorf("invalid permit type %q", *patch.PermitType)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(id)
	if i < 0 {
		return domain.Permit{}, ErrNotFound
	}
	p := &e.permits[i]
	setString(&p.ProjectID, patch.ProjectID)
	setString(&p.ProjectAddress, patch.ProjectAddress)
	setString(&p.CustomerName, patch.CustomerName)
	setString(&p.PermitNumber, patch.PermitNumber)
	setString(&p.PermitType, patch.PermitType)
	setString(&p.Municipality, patch.Municipality)
	setDate(&p.ApplicationDate, patch.ApplicationDate)
	setDate(&p.ApprovalDate, patch.ApprovalDate)
	setDate(&p.ExpirationDate, patch.ExpirationDate)
	if patch.ApplicationFee != nil {
		p.ApplicationFee = patch.ApplicationFee
	}
	if patch.FeePaid != nil {
		p.FeePaid = *patch.FeePaid
	}
	setDate(&p.FeePaymentDate, patch.FeePaymentDate)
	setString(&p.Notes, patch.Notes)
	setString(&p.ContactName, patch.ContactName)
	setString(&p.ContactPhone, patch.ContactPhone)
	setString(&p.ContactEmail, patch.ContactEmail)
	p.UpdatedAt = e.nowString()
	e.persistPermits()
	return *p, nil
}

// TransitionStatus appends a history entry and sets the new status. Any
// known status may follow any other: the state machine is advisory, so an
// operator can correct a mistaken transition by moving backwards.
func (e *Engine) TransitionStatus(id, status, notes string) (domain.Permit, error) {
	if !domain.ValidPermitStatus(status) {
		return domain.Permit{}, fmt.Errorf("invalid permit status %q", status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(id)
	if i < 0 {
		return domain.Permit{}, ErrNotFound
	}
	p := &e.permits[i]
	now := e.nowString()
	p.StatusHistory = append(p.StatusHistory, domain.StatusUpdate{
		Status:    status,
		Timestamp: now,
		Notes:     notes,
	})
	p.Status = status
	// Approval date is set once, on first reaching approved, and never
	// overwritten here.
	if status == domain.StatusApproved && p.ApprovalDate == nil {
		approved := now
		p.ApprovalDate = &approved
	}
	p.UpdatedAt = now
	e.persistPermits()
	return *p, nil
}

// DeletePermit removes the permit and, with it, every owned inspection and
// document. Irreversible; confirmation belongs to the caller.
func (e *Engine) DeletePermit(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(id)
	if i < 0 {
		return ErrNotFound
	}
	e.permits = append(e.permits[:i], e.permits[i+1:]...)
	e.persistPermits()
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setDate assigns a date field, treating an explicit empty string as
// clearing it.
func setDate(dst **string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		*dst = nil
		return
	}
	*dst = v
}
