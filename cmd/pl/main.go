package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"permitline/internal/config"
	"permitline/internal/dates"
	"permitline/internal/engine"
	"permitline/internal/export"
	"permitline/internal/server"
	"permitline/internal/snapshot"
	"permitline/internal/stats"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Permitline CLI",
	Long: `Permitline tracks building permits from application through approval.
- Workspace: your .permitline directory holding the permit and municipality snapshots.
- Permits: one record per permit with its full status history, documents, and inspections.
- Status: not_started -> application_submitted -> pending_review -> (revisions_required <-> pending_review) -> approved; expired is reachable from any non-terminal state.
- Inspections: footing, framing, final, electrical; each with its own schedule, result, and correction list.
- Municipalities: reference records (fees, requirements, average approval days) seeded on first run.
- Stats: dashboard counts plus per-permit warnings (expiring soon, pending too long, revisions needed).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := snapshot.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PERMITLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("backend", "", "storage backend (sqlite or json, overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func registerCommands() {
	rootCmd.AddCommand(permitCmd())
	rootCmd.AddCommand(inspectionCmd())
	rootCmd.AddCommand(docCmd())
	rootCmd.AddCommand(muniCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func permitCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "permit",
		Short: "Manage permits",
		Long:  "Permits carry an append-only status history: every transition is recorded with a timestamp and optional notes, and the current status is always the last entry.",
	}
	p.AddCommand(permitCreateCmd())
	p.AddCommand(permitListCmd())
	p.AddCommand(permitShowCmd())
	p.AddCommand(permitUpdateCmd())
	p.AddCommand(permitSetStatusCmd())
	p.AddCommand(permitDeleteCmd())
	return p
}

func permitCreateCmd() *cobra.Command {
	var draft engine.PermitDraft
	var applicationDate, expirationDate string
	var fee float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a permit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if draft.ProjectAddress == "" {
				return fmt.Errorf("--address required")
			}
			draft.ApplicationDate = optionalString(applicationDate)
			draft.ExpirationDate = optionalString(expirationDate)
			if cmd.Flags().Changed("fee") {
				draft.ApplicationFee = &fee
			}
			return withEngine(func(e *engine.Engine) error {
				p, err := e.CreatePermit(draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&draft.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&draft.ProjectAddress, "address", "", "project address")
	cmd.Flags().StringVar(&draft.CustomerName, "customer", "", "customer name")
	cmd.Flags().StringVar(&draft.PermitType, "type", "deck", "permit type (deck, structural, electrical, other)")
	cmd.Flags().StringVar(&draft.PermitNumber, "number", "", "permit number assigned by the municipality")
	cmd.Flags().StringVar(&draft.Municipality, "municipality", "", "municipality id")
	cmd.Flags().StringVar(&draft.Status, "status", "", "initial status")
	cmd.Flags().StringVar(&applicationDate, "application-date", "", "application date")
	cmd.Flags().StringVar(&expirationDate, "expiration-date", "", "expiration date")
	cmd.Flags().Float64Var(&fee, "fee", 0, "application fee")
	cmd.Flags().BoolVar(&draft.FeePaid, "fee-paid", false, "fee paid")
	cmd.Flags().StringVar(&draft.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&draft.ContactName, "contact-name", "", "municipal contact name")
	cmd.Flags().StringVar(&draft.ContactPhone, "contact-phone", "", "municipal contact phone")
	cmd.Flags().StringVar(&draft.ContactEmail, "contact-email", "", "municipal contact email")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func permitListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List permits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				permits := e.ListPermits(status)
				if viper.GetBool("json") {
					return printJSON(permits)
				}
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Address", "Customer", "Municipality", "Status", "Warning"})
				for _, p := range permits {
					tw.AppendRow(table.Row{
						p.ID,
						p.ProjectAddress,
						p.CustomerName,
						e.MunicipalityLabel(p.Municipality),
						p.Status,
						stats.WarningFor(p, now),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func permitShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a permit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				p, err := e.GetPermit(args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				now := time.Now()
				fmt.Printf("%s - %s (%s)\n", p.ProjectAddress, p.CustomerName, e.MunicipalityLabel(p.Municipality))
				fmt.Printf("Status: %s", p.Status)
				if w := stats.WarningFor(p, now); w != "" {
					fmt.Printf("  [%s]", w)
				}
				fmt.Println()
				if d, ok := dates.DaysSince(p.ApplicationDate, now); ok {
					fmt.Printf("Applied: %s (%d days ago)\n", *p.ApplicationDate, d)
				}
				if m, err := e.GetMunicipality(p.Municipality); err == nil && m.AverageApprovalDays > 0 {
					if est, ok := dates.EstimateApprovalDate(p.ApplicationDate, m.AverageApprovalDays); ok {
						fmt.Printf("Est. approval: %s (based on %d day avg)\n", est.Format(time.DateOnly), m.AverageApprovalDays)
					}
				}
				if d, ok := dates.DaysUntil(p.ExpirationDate, now); ok {
					if d >= 0 {
						fmt.Printf("Expires: %s (%d days remaining)\n", *p.ExpirationDate, d)
					} else {
						fmt.Printf("Expires: %s (expired %d days ago)\n", *p.ExpirationDate, -d)
					}
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func permitUpdateCmd() *cobra.Command {
	var address, customer, permitType, number, municipality string
	var applicationDate, approvalDate, expirationDate, feePaymentDate string
	var notes, contactName, contactPhone, contactEmail, projectID string
	var fee float64
	var feePaid bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update permit fields",
		Long:  "Edits descriptive fields only. Use 'pl permit set-status' for status changes so the history stays append-only. Date flags accept RFC3339 or YYYY-MM-DD; an explicit empty string clears the date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.PermitPatch
			set := func(name string, dst **string, v *string) {
				if cmd.Flags().Changed(name) {
					*dst = v
				}
			}
			set("project", &patch.ProjectID, &projectID)
			set("address", &patch.ProjectAddress, &address)
			set("customer", &patch.CustomerName, &customer)
			set("type", &patch.PermitType, &permitType)
			set("number", &patch.PermitNumber, &number)
			set("municipality", &patch.Municipality, &municipality)
			set("application-date", &patch.ApplicationDate, &applicationDate)
			set("approval-date", &patch.ApprovalDate, &approvalDate)
			set("expiration-date", &patch.ExpirationDate, &expirationDate)
			set("fee-payment-date", &patch.FeePaymentDate, &feePaymentDate)
			set("notes", &patch.Notes, &notes)
			set("contact-name", &patch.ContactName, &contactName)
			set("contact-phone", &patch.ContactPhone, &contactPhone)
			set("contact-email", &patch.ContactEmail, &contactEmail)
			if cmd.Flags().Changed("fee") {
				patch.ApplicationFee = &fee
			}
			if cmd.Flags().Changed("fee-paid") {
				patch.FeePaid = &feePaid
			}
			return withEngine(func(e *engine.Engine) error {
				p, err := e.UpdatePermit(args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&address, "address", "", "project address")
	cmd.Flags().StringVar(&customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&permitType, "type", "", "permit type")
	cmd.Flags().StringVar(&number, "number", "", "permit number")
	cmd.Flags().StringVar(&municipality, "municipality", "", "municipality id")
	cmd.Flags().StringVar(&applicationDate, "application-date", "", "application date (empty clears)")
	cmd.Flags().StringVar(&approvalDate, "approval-date", "", "approval date (empty clears)")
	cmd.Flags().StringVar(&expirationDate, "expiration-date", "", "expiration date (empty clears)")
	cmd.Flags().Float64Var(&fee, "fee", 0, "application fee")
	cmd.Flags().BoolVar(&feePaid, "fee-paid", false, "fee paid")
	cmd.Flags().StringVar(&feePaymentDate, "fee-payment-date", "", "fee payment date (empty clears)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&contactName, "contact-name", "", "municipal contact name")
	cmd.Flags().StringVar(&contactPhone, "contact-phone", "", "municipal contact phone")
	cmd.Flags().StringVar(&contactEmail, "contact-email", "", "municipal contact email")
	return cmd
}

func permitSetStatusCmd() *cobra.Command {
	var status, notes string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Transition permit status",
		Long:  "Appends a history entry and sets the new status. Reaching approved for the first time stamps the approval date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				p, err := e.TransitionStatus(args[0], status, notes)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&notes, "notes", "", "transition notes")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func permitDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a permit and its inspections and documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				return e.DeletePermit(args[0])
			})
		},
	}
	return cmd
}

func inspectionCmd() *cobra.Command {
	i := &cobra.Command{
		Use:   "inspection",
		Short: "Manage inspections on a permit",
	}
	i.AddCommand(inspectionAddCmd())
	i.AddCommand(inspectionUpdateCmd())
	i.AddCommand(inspectionDeleteCmd())
	return i
}

func inspectionAddCmd() *cobra.Command {
	var draft engine.InspectionDraft
	var scheduledDate, inspector string
	cmd := &cobra.Command{
		Use:   "add <permit-id>",
		Short: "Add an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.ScheduledDate = optionalString(scheduledDate)
			draft.Inspector = optionalString(inspector)
			return withEngine(func(e *engine.Engine) error {
				insp, err := e.AddInspection(args[0], draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(insp)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Type, "type", "", "inspection type (footing, framing, final, electrical)")
	cmd.Flags().StringVar(&draft.Status, "status", "", "initial status")
	cmd.Flags().StringVar(&scheduledDate, "scheduled-date", "", "scheduled date")
	cmd.Flags().StringVar(&inspector, "inspector", "", "inspector name")
	cmd.Flags().StringVar(&draft.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func inspectionUpdateCmd() *cobra.Command {
	var inspType, status, scheduledDate, completedDate, inspector, result, notes string
	var corrections []string
	cmd := &cobra.Command{
		Use:   "update <permit-id> <inspection-id>",
		Short: "Update an inspection",
		Long:  "Marking an inspection completed without --completed-date stamps the current time. --correction replaces the whole correction list.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.InspectionPatch
			set := func(name string, dst **string, v *string) {
				if cmd.Flags().Changed(name) {
					*dst = v
				}
			}
			set("type", &patch.Type, &inspType)
			set("status", &patch.Status, &status)
			set("scheduled-date", &patch.ScheduledDate, &scheduledDate)
			set("completed-date", &patch.CompletedDate, &completedDate)
			set("inspector", &patch.Inspector, &inspector)
			set("result", &patch.Result, &result)
			set("notes", &patch.Notes, &notes)
			if cmd.Flags().Changed("correction") {
				patch.Corrections = corrections
			}
			if patch.Status != nil && *patch.Status == "completed" && patch.CompletedDate == nil {
				ts := time.Now().UTC().Format(time.RFC3339)
				patch.CompletedDate = &ts
			}
			return withEngine(func(e *engine.Engine) error {
				insp, err := e.UpdateInspection(args[0], args[1], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(insp)
			})
		},
	}
	cmd.Flags().StringVar(&inspType, "type", "", "inspection type")
	cmd.Flags().StringVar(&status, "status", "", "status (not_scheduled, scheduled, completed, failed_reschedule)")
	cmd.Flags().StringVar(&scheduledDate, "scheduled-date", "", "scheduled date")
	cmd.Flags().StringVar(&completedDate, "completed-date", "", "completed date")
	cmd.Flags().StringVar(&inspector, "inspector", "", "inspector name")
	cmd.Flags().StringVar(&result, "result", "", "result (passed, failed, conditional; empty clears)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringArrayVar(&corrections, "correction", []string{}, "correction item (repeatable, replaces the list)")
	return cmd
}

func inspectionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <permit-id> <inspection-id>",
		Short: "Delete an inspection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				return e.DeleteInspection(args[0], args[1])
			})
		},
	}
	return cmd
}

func docCmd() *cobra.Command {
	d := &cobra.Command{
		Use:   "doc",
		Short: "Manage permit documents",
	}
	d.AddCommand(docAddCmd())
	d.AddCommand(docDeleteCmd())
	return d
}

func docAddCmd() *cobra.Command {
	var draft engine.DocumentDraft
	cmd := &cobra.Command{
		Use:   "add <permit-id>",
		Short: "Attach a document reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if draft.Name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(func(e *engine.Engine) error {
				doc, err := e.AddDocument(args[0], draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "document name")
	cmd.Flags().StringVar(&draft.Type, "type", "other", "document type (application, approval, plans, inspection_report, other)")
	cmd.Flags().StringVar(&draft.URL, "url", "", "document location")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func docDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <permit-id> <document-id>",
		Short: "Remove a document reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				return e.DeleteDocument(args[0], args[1])
			})
		},
	}
	return cmd
}

func muniCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "muni",
		Short: "Manage the municipality registry",
		Long:  "Municipalities are reference records: fee schedules, submission requirements, and average approval days used to estimate decision dates.",
	}
	m.AddCommand(muniListCmd())
	m.AddCommand(muniShowCmd())
	m.AddCommand(muniAddCmd())
	m.AddCommand(muniUpdateCmd())
	m.AddCommand(muniDeleteCmd())
	return m
}

func muniListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List municipalities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				items := e.ListMunicipalities()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "County", "Avg Days", "Deck Fee", "Inspection Fee"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Name, m.County, m.AverageApprovalDays, m.Fees.DeckPermit, m.Fees.InspectionFee})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func muniShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id-or-name>",
		Short: "Show a municipality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				m, err := e.GetMunicipality(args[0])
				if errors.Is(err, engine.ErrNotFound) {
					m, err = e.GetMunicipalityByName(args[0])
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func muniAddCmd() *cobra.Command {
	var draft engine.MunicipalityDraft
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a municipality",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				m, err := e.AddMunicipality(draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&draft.ID, "id", "", "municipality id (generated when omitted)")
	cmd.Flags().StringVar(&draft.Name, "name", "", "name")
	cmd.Flags().StringVar(&draft.County, "county", "", "county")
	cmd.Flags().StringVar(&draft.Website, "website", "", "website")
	cmd.Flags().StringVar(&draft.PermitPortalURL, "portal", "", "permit portal URL")
	cmd.Flags().StringVar(&draft.ContactPhone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&draft.ContactEmail, "email", "", "contact email")
	cmd.Flags().IntVar(&draft.AverageApprovalDays, "avg-days", 0, "average approval days")
	cmd.Flags().Float64Var(&draft.Fees.DeckPermit, "deck-fee", 0, "deck permit fee")
	cmd.Flags().Float64Var(&draft.Fees.InspectionFee, "inspection-fee", 0, "inspection fee")
	cmd.Flags().StringArrayVar(&draft.Requirements, "requirement", []string{}, "submission requirement (repeatable)")
	cmd.Flags().StringVar(&draft.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func muniUpdateCmd() *cobra.Command {
	var name, county, website, portal, phone, email, notes string
	var avgDays int
	var deckFee, inspectionFee float64
	var requirements []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a municipality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.MunicipalityPatch
			set := func(flag string, dst **string, v *string) {
				if cmd.Flags().Changed(flag) {
					*dst = v
				}
			}
			set("name", &patch.Name, &name)
			set("county", &patch.County, &county)
			set("website", &patch.Website, &website)
			set("portal", &patch.PermitPortalURL, &portal)
			set("phone", &patch.ContactPhone, &phone)
			set("email", &patch.ContactEmail, &email)
			set("notes", &patch.Notes, &notes)
			if cmd.Flags().Changed("avg-days") {
				patch.AverageApprovalDays = &avgDays
			}
			if cmd.Flags().Changed("deck-fee") {
				patch.DeckPermitFee = &deckFee
			}
			if cmd.Flags().Changed("inspection-fee") {
				patch.InspectionFee = &inspectionFee
			}
			if cmd.Flags().Changed("requirement") {
				patch.Requirements = requirements
			}
			return withEngine(func(e *engine.Engine) error {
				m, err := e.UpdateMunicipality(args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&county, "county", "", "county")
	cmd.Flags().StringVar(&website, "website", "", "website")
	cmd.Flags().StringVar(&portal, "portal", "", "permit portal URL")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().IntVar(&avgDays, "avg-days", 0, "average approval days")
	cmd.Flags().Float64Var(&deckFee, "deck-fee", 0, "deck permit fee")
	cmd.Flags().Float64Var(&inspectionFee, "inspection-fee", 0, "inspection fee")
	cmd.Flags().StringArrayVar(&requirements, "requirement", []string{}, "submission requirement (replaces the list)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func muniDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a municipality",
		Long:  "Permits keep their municipality id after the record is deleted and render the raw id as the label.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				return e.DeleteMunicipality(args[0])
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				o := stats.Compute(e.ListPermits(""), time.Now())
				if viper.GetBool("json") {
					return printJSON(o)
				}
				fmt.Printf("Permits:               %d\n", o.TotalPermits)
				fmt.Printf("In progress:           %d\n", o.InProgress)
				fmt.Printf("Pending review:        %d\n", o.PendingReview)
				fmt.Printf("Needs attention:       %d\n", o.NeedsAttention)
				fmt.Printf("Scheduled inspections: %d\n", o.ScheduledInspections)
				return nil
			})
		},
	}
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export permits as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				permits := e.ListPermits("")
				if out == "" {
					return export.WriteCSV(os.Stdout, permits)
				}
				if out == "auto" {
					out = export.Filename(time.Now())
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := export.WriteCSV(f, permits); err != nil {
					return err
				}
				fmt.Printf("Wrote %d permits to %s\n", len(permits), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when omitted, 'auto' for a dated name)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "permitline.yml holds the storage backend, server settings, and the municipality seed list used on first run.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default permitline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves the workspace over HTTP. Set PERMITLINE_JWT_SECRET (or server.jwt_secret in permitline.yml) to require bearer tokens; with no secret the API is open, which suits a localhost workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if addr == "" {
				addr = "127.0.0.1:8787"
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := os.Getenv("PERMITLINE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			store, err := openStore(workspace, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			e, err := engine.New(store, cfg.SeedMunicipalities())
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: log.Default()},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Permitline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func openStore(workspace string, cfg *config.Config) (snapshot.Store, error) {
	backend := viper.GetString("backend")
	if backend == "" {
		backend = cfg.Backend()
	}
	return snapshot.Open(workspace, backend)
}

func withEngine(fn func(*engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	store, err := openStore(workspace, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	e, err := engine.New(store, cfg.SeedMunicipalities())
	if err != nil {
		return err
	}
	return fn(e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
