package domain

// Permit statuses in workflow order. Expired is reachable from any
// non-terminal status as an operator-confirmed, out-of-band transition.
const (
	StatusNotStarted           = "not_started"
	StatusApplicationSubmitted = "application_submitted"
	StatusPendingReview        = "pending_review"
	StatusRevisionsRequired    = "revisions_required"
	StatusApproved             = "approved"
	StatusExpired              = "expired"
)

// PermitStatuses lists every valid permit status.
var PermitStatuses = []string{
	StatusNotStarted,
	StatusApplicationSubmitted,
	StatusPendingReview,
	StatusRevisionsRequired,
	StatusApproved,
	StatusExpired,
}

const (
	InspectionNotScheduled     = "not_scheduled"
	InspectionScheduled        = "scheduled"
	InspectionCompleted        = "completed"
	InspectionFailedReschedule = "failed_reschedule"
)

var InspectionStatuses = []string{
	InspectionNotScheduled,
	InspectionScheduled,
	InspectionCompleted,
	InspectionFailedReschedule,
}

const (
	ResultPassed      = "passed"
	ResultFailed      = "failed"
	ResultConditional = "conditional"
)

var InspectionResults = []string{ResultPassed, ResultFailed, ResultConditional}

var PermitTypes = []string{"deck", "structural", "electrical", "other"}

var InspectionTypes = []string{"footing", "framing", "final", "electrical"}

var DocumentTypes = []string{"application", "approval", "plans", "inspection_report", "other"}

// StatusUpdate is one entry in a permit's append-only status history.
type StatusUpdate struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Notes     string `json:"notes,omitempty"`
}

type Document struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type" enum:"application,approval,plans,inspection_report,other"`
	URL        string `json:"url"`
	UploadedAt string `json:"uploaded_at" format:"date-time"`
}

type Inspection struct {
	ID            string   `json:"id"`
	Type          string   `json:"type" enum:"footing,framing,final,electrical"`
	Status        string   `json:"status" enum:"not_scheduled,scheduled,completed,failed_reschedule"`
	ScheduledDate *string  `json:"scheduled_date,omitempty" format:"date-time"`
	CompletedDate *string  `json:"completed_date,omitempty" format:"date-time"`
	Inspector     *string  `json:"inspector,omitempty"`
	Result        *string  `json:"result,omitempty" enum:"passed,failed,conditional"`
	Notes         string   `json:"notes,omitempty"`
	Corrections   []string `json:"corrections,omitempty"`
}

// Permit is one construction-permit application tracked end to end.
// Status always equals the status of the last StatusHistory entry.
type Permit struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	ProjectAddress string `json:"project_address"`
	CustomerName   string `json:"customer_name"`

	PermitNumber string `json:"permit_number,omitempty"`
	PermitType   string `json:"permit_type" enum:"deck,structural,electrical,other"`
	Municipality string `json:"municipality"`

	Status        string         `json:"status" enum:"not_started,application_submitted,pending_review,revisions_required,approved,expired"`
	StatusHistory []StatusUpdate `json:"status_history"`

	ApplicationDate *string `json:"application_date,omitempty" format:"date-time"`
	ApprovalDate    *string `json:"approval_date,omitempty" format:"date-time"`
	ExpirationDate  *string `json:"expiration_date,omitempty" format:"date-time"`

	ApplicationFee *float64 `json:"application_fee,omitempty"`
	FeePaid        bool     `json:"fee_paid"`
	FeePaymentDate *string  `json:"fee_payment_date,omitempty" format:"date-time"`

	Documents   []Document   `json:"documents"`
	Inspections []Inspection `json:"inspections"`

	Notes        string `json:"notes,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// FeeSchedule holds a municipality's standard charges.
type FeeSchedule struct {
	DeckPermit    float64 `json:"deck_permit"`
	InspectionFee float64 `json:"inspection_fee"`
}

// Municipality is operator-maintained reference data, not live external data.
type Municipality struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	County              string      `json:"county"`
	Website             string      `json:"website,omitempty"`
	PermitPortalURL     string      `json:"permit_portal_url,omitempty"`
	ContactPhone        string      `json:"contact_phone,omitempty"`
	ContactEmail        string      `json:"contact_email,omitempty"`
	AverageApprovalDays int         `json:"average_approval_days"`
	Fees                FeeSchedule `json:"fees"`
	Requirements        []string    `json:"requirements"`
	Notes               string      `json:"notes,omitempty"`
}

// Display labels, keyed by the enum values above.
var PermitStatusLabels = map[string]string{
	StatusNotStarted:           "Not Started",
	StatusApplicationSubmitted: "Submitted",
	StatusPendingReview:        "Under Review",
	StatusRevisionsRequired:    "Revisions Needed",
	StatusApproved:             "Approved",
	StatusExpired:              "Expired",
}

var PermitTypeLabels = map[string]string{
	"deck":       "Deck Permit",
	"structural": "Structural Permit",
	"electrical": "Electrical Permit",
	"other":      "Other",
}

var InspectionTypeLabels = map[string]string{
	"footing":    "Footing Inspection",
	"framing":    "Framing Inspection",
	"final":      "Final Inspection",
	"electrical": "Electrical Inspection",
}

var InspectionStatusLabels = map[string]string{
	InspectionNotScheduled:     "Not Scheduled",
	InspectionScheduled:        "Scheduled",
	InspectionCompleted:        "Completed",
	InspectionFailedReschedule: "Failed - Reschedule",
}

var InspectionResultLabels = map[string]string{
	ResultPassed:      "Passed",
	ResultFailed:      "Failed",
	ResultConditional: "Conditional Pass",
}

// ValidPermitStatus reports whether s is a known permit status.
func ValidPermitStatus(s string) bool { return contains(PermitStatuses, s) }

func ValidPermitType(s string) bool { return contains(PermitTypes, s) }

func ValidInspectionType(s string) bool { return contains(InspectionTypes, s) }

func ValidInspectionStatus(s string) bool { return contains(InspectionStatuses, s) }

func ValidInspectionResult(s string) bool { return contains(InspectionResults, s) }

func ValidDocumentType(s string) bool { return contains(DocumentTypes, s) }

func contains(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}
