package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"permitline/internal/domain"
)

// MunicipalityDraft carries the fields for a new reference record.
type MunicipalityDraft struct {
	ID                  string
	Name                string
	County              string
	Website             string
	PermitPortalURL     string
	ContactPhone        string
	ContactEmail        string
	AverageApprovalDays int
	Fees                domain.FeeSchedule
	Requirements        []string
	Notes               string
}

// AddMunicipality inserts a reference record, assigning an id when the
// draft leaves it blank.
func (e *Engine) AddMunicipality(draft MunicipalityDraft) (domain.Municipality, error) {
	if draft.Name == "" {
		return domain.Municipality{}, fmt.Errorf("municipality name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := draft.ID
	if id == "" {
		id = uuid.New().String()
	}
	for _, m := range e.municipalities {
		if m.ID == id {
			return domain.Municipality{}, fmt.Errorf("municipality %s already exists", id)
		}
	}
	m := domain.Municipality{
		ID:                  id,
		Name:                draft.Name,
		County:              draft.County,
		Website:             draft.Website,
		PermitPortalURL:     draft.PermitPortalURL,
		ContactPhone:        draft.ContactPhone,
		ContactEmail:        draft.ContactEmail,
		AverageApprovalDays: draft.AverageApprovalDays,
		Fees:                draft.Fees,
		Requirements:        draft.Requirements,
		Notes:               draft.Notes,
	}
	e.municipalities = append(e.municipalities, m)
	e.persistMunicipalities()
	return m, nil
}

// MunicipalityPatch names every field a registry update may touch.
type MunicipalityPatch struct {
	Name                *string
	County              *string
	Website             *string
	PermitPortalURL     *string
	ContactPhone        *string
	ContactEmail        *string
	AverageApprovalDays *int
	DeckPermitFee       *float64
	InspectionFee       *float64
	Requirements        []string
	Notes               *string
}

func (e *Engine) UpdateMunicipality(id string, patch MunicipalityPatch) (domain.Municipality, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.municipalities {
		if e.municipalities[i].ID != id {
			continue
		}
		m := &e.municipalities[i]
		setString(&m.Name, patch.Name)
		setString(&m.County, patch.County)
		setString(&m.Website, patch.Website)
		setString(&m.PermitPortalURL, patch.PermitPortalURL)
		setString(&m.ContactPhone, patch.ContactPhone)
		setString(&m.ContactEmail, patch.ContactEmail)
		if patch.AverageApprovalDays != nil {
			m.AverageApprovalDays = *patch.AverageApprovalDays
		}
		if patch.DeckPermitFee != nil {
			m.Fees.DeckPermit = *patch.DeckPermitFee
		}
		if patch.InspectionFee != nil {
			m.Fees.InspectionFee = *patch.InspectionFee
		}
		if patch.Requirements != nil {
			m.Requirements = patch.Requirements
		}
		setString(&m.Notes, patch.Notes)
		e.persistMunicipalities()
		return *m, nil
	}
	return domain.Municipality{}, ErrNotFound
}

// DeleteMunicipality removes the reference record. Permits referencing it
// keep the now-dangling id; views fall back to rendering the raw id, so
// permit history survives registry changes.
func (e *Engine) DeleteMunicipality(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.municipalities {
		if e.municipalities[i].ID == id {
			e.municipalities = append(e.municipalities[:i], e.municipalities[i+1:]...)
			e.persistMunicipalities()
			return nil
		}
	}
	return ErrNotFound
}

func (e *Engine) GetMunicipality(id string) (domain.Municipality, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.municipalities {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Municipality{}, ErrNotFound
}

func (e *Engine) GetMunicipalityByName(name string) (domain.Municipality, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.municipalities {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return domain.Municipality{}, ErrNotFound
}

func (e *Engine) ListMunicipalities() []domain.Municipality {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Municipality(nil), e.municipalities...)
}

// MunicipalityLabel resolves an id to a display name, falling back to the
// raw id when the record is gone.
func (e *Engine) MunicipalityLabel(id string) string {
	if m, err := e.GetMunicipality(id); err == nil {
		return m.Name
	}
	return id
}
