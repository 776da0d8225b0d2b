package server

import (
	"permitline/internal/domain"
	"permitline/internal/engine"
	"permitline/internal/stats"
)

// Request payloads

type CreatePermitRequest struct {
	ProjectID       string   `json:"project_id,omitempty"`
	ProjectAddress  string   `json:"project_address"`
	CustomerName    string   `json:"customer_name,omitempty"`
	PermitType      string   `json:"permit_type,omitempty" enum:"deck,structural,electrical,other"`
	PermitNumber    string   `json:"permit_number,omitempty"`
	Municipality    string   `json:"municipality,omitempty"`
	Status          string   `json:"status,omitempty" enum:"not_started,application_submitted,pending_review,revisions_required,approved,expired"`
	ApplicationDate *string  `json:"application_date,omitempty"`
	ApprovalDate    *string  `json:"approval_date,omitempty"`
	ExpirationDate  *string  `json:"expiration_date,omitempty"`
	ApplicationFee  *float64 `json:"application_fee,omitempty"`
	FeePaid         bool     `json:"fee_paid,omitempty"`
	FeePaymentDate  *string  `json:"fee_payment_date,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	ContactName     string   `json:"contact_name,omitempty"`
	ContactPhone    string   `json:"contact_phone,omitempty"`
	ContactEmail    string   `json:"contact_email,omitempty"`
}

type UpdatePermitRequest struct {
	ProjectID       *string  `json:"project_id,omitempty"`
	ProjectAddress  *string  `json:"project_address,omitempty"`
	CustomerName    *string  `json:"customer_name,omitempty"`
	PermitType      *string  `json:"permit_type,omitempty" enum:"deck,structural,electrical,other"`
	PermitNumber    *string  `json:"permit_number,omitempty"`
	Municipality    *string  `json:"municipality,omitempty"`
	ApplicationDate *string  `json:"application_date,omitempty"`
	ApprovalDate    *string  `json:"approval_date,omitempty"`
	ExpirationDate  *string  `json:"expiration_date,omitempty"`
	ApplicationFee  *float64 `json:"application_fee,omitempty"`
	FeePaid         *bool    `json:"fee_paid,omitempty"`
	FeePaymentDate  *string  `json:"fee_payment_date,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	ContactName     *string  `json:"contact_name,omitempty"`
	ContactPhone    *string  `json:"contact_phone,omitempty"`
	ContactEmail    *string  `json:"contact_email,omitempty"`
}

type TransitionStatusRequest struct {
	Status string `json:"status" enum:"not_started,application_submitted,pending_review,revisions_required,approved,expired"`
	Notes  string `json:"notes,omitempty"`
}

type AddInspectionRequest struct {
	Type          string `json:"type" enum:"footing,framing,final,electrical"`
	Status        string `json:"status,omitempty" enum:"not_scheduled,scheduled,completed,failed_reschedule"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	Inspector     string `json:"inspector,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type UpdateInspectionRequest struct {
	Type          *string  `json:"type,omitempty" enum:"footing,framing,final,electrical"`
	Status        *string  `json:"status,omitempty" enum:"not_scheduled,scheduled,completed,failed_reschedule"`
	ScheduledDate *string  `json:"scheduled_date,omitempty"`
	CompletedDate *string  `json:"completed_date,omitempty"`
	Inspector     *string  `json:"inspector,omitempty"`
	Result        *string  `json:"result,omitempty" enum:"passed,failed,conditional"`
	Notes         *string  `json:"notes,omitempty"`
	Corrections   []string `json:"corrections,omitempty"`
}

type AddDocumentRequest struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty" enum:"application,approval,plans,inspection_report,other"`
	URL  string `json:"url,omitempty"`
}

type MunicipalityRequest struct {
	ID                  string   `json:"id,omitempty"`
	Name                string   `json:"name"`
	County              string   `json:"county,omitempty"`
	Website             string   `json:"website,omitempty"`
	PermitPortalURL     string   `json:"permit_portal_url,omitempty"`
	ContactPhone        string   `json:"contact_phone,omitempty"`
	ContactEmail        string   `json:"contact_email,omitempty"`
	AverageApprovalDays int      `json:"average_approval_days,omitempty"`
	DeckPermitFee       float64  `json:"deck_permit_fee,omitempty"`
	InspectionFee       float64  `json:"inspection_fee,omitempty"`
	Requirements        []string `json:"requirements,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}

type UpdateMunicipalityRequest struct {
	Name                *string  `json:"name,omitempty"`
	County              *string  `json:"county,omitempty"`
	Website             *string  `json:"website,omitempty"`
	PermitPortalURL     *string  `json:"permit_portal_url,omitempty"`
	ContactPhone        *string  `json:"contact_phone,omitempty"`
	ContactEmail        *string  `json:"contact_email,omitempty"`
	AverageApprovalDays *int     `json:"average_approval_days,omitempty"`
	DeckPermitFee       *float64 `json:"deck_permit_fee,omitempty"`
	InspectionFee       *float64 `json:"inspection_fee,omitempty"`
	Requirements        []string `json:"requirements,omitempty"`
	Notes               *string  `json:"notes,omitempty"`
}

// Response payloads

// PermitSummary decorates a permit with its derived warning badge for
// list views. The warning is computed, never stored.
type PermitSummary struct {
	domain.Permit
	Warning string `json:"warning,omitempty"`
}

type StatsResponse struct {
	stats.Overview
	GeneratedAt string `json:"generated_at" format:"date-time"`
}

func (c CreatePermitRequest) draft() engine.PermitDraft {
	return engine.PermitDraft{
		ProjectID:       c.ProjectID,
		ProjectAddress:  c.ProjectAddress,
		CustomerName:    c.CustomerName,
		PermitType:      c.PermitType,
		PermitNumber:    c.PermitNumber,
		Municipality:    c.Municipality,
		Status:          c.Status,
		ApplicationDate: c.ApplicationDate,
		ApprovalDate:    c.ApprovalDate,
		ExpirationDate:  c.ExpirationDate,
		ApplicationFee:  c.ApplicationFee,
		FeePaid:         c.FeePaid,
		FeePaymentDate:  c.FeePaymentDate,
		Notes:           c.Notes,
		ContactName:     c.ContactName,
		ContactPhone:    c.ContactPhone,
		ContactEmail:    c.ContactEmail,
	}
}

func (u UpdatePermitRequest) patch() engine.PermitPatch {
	return engine.PermitPatch{
		ProjectID:       u.ProjectID,
		ProjectAddress:  u.ProjectAddress,
		CustomerName:    u.CustomerName,
		PermitType:      u.PermitType,
		PermitNumber:    u.PermitNumber,
		Municipality:    u.Municipality,
		ApplicationDate: u.ApplicationDate,
		ApprovalDate:    u.ApprovalDate,
		ExpirationDate:  u.ExpirationDate,
		ApplicationFee:  u.ApplicationFee,
		FeePaid:         u.FeePaid,
		FeePaymentDate:  u.FeePaymentDate,
		Notes:           u.Notes,
		ContactName:     u.ContactName,
		ContactPhone:    u.ContactPhone,
		ContactEmail:    u.ContactEmail,
	}
}

func (r MunicipalityRequest) draft() engine.MunicipalityDraft {
	return engine.MunicipalityDraft{
		ID:                  r.ID,
		Name:                r.Name,
		County:              r.County,
		Website:             r.Website,
		PermitPortalURL:     r.PermitPortalURL,
		ContactPhone:        r.ContactPhone,
		ContactEmail:        r.ContactEmail,
		AverageApprovalDays: r.AverageApprovalDays,
		Fees:                domain.FeeSchedule{DeckPermit: r.DeckPermitFee, InspectionFee: r.InspectionFee},
		Requirements:        r.Requirements,
		Notes:               r.Notes,
	}
}

func (u UpdateMunicipalityRequest) patch() engine.MunicipalityPatch {
	return engine.MunicipalityPatch{
		Name:                u.Name,
		County:              u.County,
		Website:             u.Website,
		PermitPortalURL:     u.PermitPortalURL,
		ContactPhone:        u.ContactPhone,
		ContactEmail:        u.ContactEmail,
		AverageApprovalDays: u.AverageApprovalDays,
		DeckPermitFee:       u.DeckPermitFee,
		InspectionFee:       u.InspectionFee,
		Requirements:        u.Requirements,
		Notes:               u.Notes,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a AddInspectionRequest) draft() engine.InspectionDraft {
	return engine.InspectionDraft{
		Type:          a.Type,
		Status:        a.Status,
		ScheduledDate: optional(a.ScheduledDate),
		Inspector:     optional(a.Inspector),
		Notes:         a.Notes,
	}
}

func (u UpdateInspectionRequest) patch() engine.InspectionPatch {
	return engine.InspectionPatch{
		Type:          u.Type,
		Status:        u.Status,
		ScheduledDate: u.ScheduledDate,
		CompletedDate: u.CompletedDate,
		Inspector:     u.Inspector,
		Result:        u.Result,
		Notes:         u.Notes,
		Corrections:   u.Corrections,
	}
}
