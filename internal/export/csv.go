// Package export renders the permit collection as CSV for spreadsheet
// import. Values that a spreadsheet would evaluate as a formula are
// neutralized before the usual quoting rules apply.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"permitline/internal/domain"
)

var columns = []string{
	"id",
	"projectAddress",
	"customerName",
	"municipality",
	"permitType",
	"permitNumber",
	"status",
	"applicationDate",
	"approvalDate",
	"expirationDate",
	"applicationFee",
	"feePaid",
	"notes",
	"createdAt",
}

// neutralize prefixes a single quote when the value would otherwise be
// interpreted as a formula on import (leading =, +, -, @, tab or CR).
func neutralize(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fee(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteCSV emits a header row followed by one row per permit.
func WriteCSV(w io.Writer, permits []domain.Permit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range permits {
		row := []string{
			p.ID,
			p.ProjectAddress,
			p.CustomerName,
			p.Municipality,
			p.PermitType,
			p.PermitNumber,
			p.Status,
			deref(p.ApplicationDate),
			deref(p.ApprovalDate),
			deref(p.ExpirationDate),
			fee(p.ApplicationFee),
			yesNo(p.FeePaid),
			p.Notes,
			p.CreatedAt,
		}
		for i, v := range row {
			row[i] = neutralize(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write permit %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds the conventional dated export name.
func Filename(now time.Time) string {
	return "permits-" + now.Format(time.DateOnly) + ".csv"
}
