package export_test

import (
	"strings"
	"testing"
	"time"

	"permitline/internal/domain"
	"permitline/internal/export"
)

func str(s string) *string { return &s }

func samplePermit() domain.Permit {
	fee := 165.0
	return domain.Permit{
		ID:              "7f9c0d52",
		ProjectAddress:  "412 Birchwood Ln",
		CustomerName:    "Dana Ruiz",
		Municipality:    "eagan",
		PermitType:      "deck",
		PermitNumber:    "BP-2024-0091",
		Status:          domain.StatusApproved,
		ApplicationDate: str("2024-05-01T00:00:00Z"),
		ApprovalDate:    str("2024-05-12T00:00:00Z"),
		ApplicationFee:  &fee,
		FeePaid:         true,
		Notes:           "rear deck, 14x20",
		CreatedAt:       "2024-04-28T16:00:00Z",
	}
}

func TestWriteCSVHeaderAndRow(t *testing.T) {
	var buf strings.Builder
	if err := export.WriteCSV(&buf, []domain.Permit{samplePermit()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	wantHeader := "id,projectAddress,customerName,municipality,permitType,permitNumber,status,applicationDate,approvalDate,expirationDate,applicationFee,feePaid,notes,createdAt"
	if lines[0] != wantHeader {
		t.Fatalf("header:\n got %s\nwant %s", lines[0], wantHeader)
	}
	wantRow := "7f9c0d52,412 Birchwood Ln,Dana Ruiz,eagan,deck,BP-2024-0091,approved,2024-05-01T00:00:00Z,2024-05-12T00:00:00Z,,165,Yes,\"rear deck, 14x20\",2024-04-28T16:00:00Z"
	if lines[1] != wantRow {
		t.Fatalf("row:\n got %s\nwant %s", lines[1], wantRow)
	}
}

func TestWriteCSVNeutralizesFormulas(t *testing.T) {
	p := samplePermit()
	p.Notes = "=cmd|'/calc'"
	var buf strings.Builder
	if err := export.WriteCSV(&buf, []domain.Permit{p}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "'=cmd|'/calc'") {
		t.Fatalf("formula payload not neutralized:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), ",=cmd") {
		t.Fatalf("raw formula leaked into output")
	}
}

func TestWriteCSVPrefixVariants(t *testing.T) {
	for _, lead := range []string{"=", "+", "-", "@", "\t", "\r"} {
		p := samplePermit()
		p.CustomerName = lead + "payload"
		var buf strings.Builder
		if err := export.WriteCSV(&buf, []domain.Permit{p}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if !strings.Contains(buf.String(), "'"+lead+"payload") {
			t.Fatalf("leading %q not neutralized:\n%s", lead, buf.String())
		}
	}
}

func TestWriteCSVQuoting(t *testing.T) {
	p := samplePermit()
	p.Notes = `double "check" railing`
	var buf strings.Builder
	if err := export.WriteCSV(&buf, []domain.Permit{p}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `"double ""check"" railing"`) {
		t.Fatalf("internal quotes not doubled:\n%s", buf.String())
	}
}

func TestWriteCSVEmptyCollection(t *testing.T) {
	var buf strings.Builder
	if err := export.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	if got := export.Filename(now); got != "permits-2024-06-01.csv" {
		t.Fatalf("got %s", got)
	}
}
