package engine

import (
	"fmt"

	"github.com/google/uuid"

	"permitline/internal/domain"
)

// DocumentDraft carries the fields for a new attachment. URL is an opaque
// reference into whatever blob storage the operator uses.
type DocumentDraft struct {
	Name string
	Type string
	URL  string
}

// AddDocument attaches a document reference to the permit.
func (e *Engine) AddDocument(permitID string, draft DocumentDraft) (domain.Document, error) {
	if draft.Type == "" {
		draft.Type = "other"
	}
	if !domain.ValidDocumentType(draft.Type) {
		return domain.Document{}, fmt.Errorf("invalid document type %q", draft.Type)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(permitID)
	if i < 0 {
		return domain.Document{}, ErrNotFound
	}
	doc := domain.Document{
		ID:         uuid.New().String(),
		Name:       draft.Name,
		Type:       draft.Type,
		URL:        draft.URL,
		UploadedAt: e.nowString(),
	}
	p := &e.permits[i]
	p.Documents = append(p.Documents, doc)
	p.UpdatedAt = e.nowString()
	e.persistPermits()
	return doc, nil
}

// DeleteDocument removes the document reference by id.
func (e *Engine) DeleteDocument(permitID, documentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.findPermit(permitID)
	if i < 0 {
		return ErrNotFound
	}
	p := &e.permits[i]
	for j := range p.Documents {
		if p.Documents[j].ID == documentID {
			p.Documents = append(p.Documents[:j], p.Documents[j+1:]...)
			p.UpdatedAt = e.nowString()
			e.persistPermits()
			return nil
		}
	}
	return ErrNotFound
}
