// Package server exposes the permit engine over HTTP with an OpenAPI
// description and optional bearer-token auth.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"permitline/internal/domain"
	"permitline/internal/engine"
	"permitline/internal/export"
	"permitline/internal/stats"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
	Now      func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"permit not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope used on every non-2xx response.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Permitline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Permitline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerPermits(group, cfg.Engine, now)
	registerInspections(group, cfg.Engine, now)
	registerDocuments(group, cfg.Engine)
	registerMunicipalities(group, cfg.Engine)
	registerStats(group, cfg.Engine, now)
	registerExport(router, basePath, cfg.Engine, now)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Permitline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPermits(api huma.API, e *engine.Engine, now func() time.Time) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-permit",
		Method:        http.MethodPost,
		Path:          "/permits",
		Summary:       "Create permit",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreatePermitRequest `json:"body"`
	}) (*struct {
		Body domain.Permit `json:"body"`
	}, error) {
		if input.Body.ProjectAddress == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "project_address is required", nil)
		}
		p, err := e.CreatePermit(input.Body.draft())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Permit `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-permits",
		Method:      http.MethodGet,
		Path:        "/permits",
		Summary:     "List permits",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:",not_started,application_submitted,pending_review,revisions_required,approved,expired"`
	}) (*struct {
		Body []PermitSummary `json:"body"`
	}, error) {
		if input.Status != "" && !domain.ValidPermitStatus(input.Status) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", input.Status), nil)
		}
		permits := e.ListPermits(input.Status)
		items := make([]PermitSummary, 0, len(permits))
		ts := now()
		for _, p := range permits {
			items = append(items, PermitSummary{Permit: p, Warning: stats.WarningFor(p, ts)})
		}
		return &struct {
			Body []PermitSummary `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-permit",
		Method:      http.MethodGet,
		Path:        "/permits/{id}",
		Summary:     "Get permit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Permit `json:"body"`
	}, error) {
		p, err := e.GetPermit(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Permit `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-permit",
		Method:      http.MethodPatch,
		Path:        "/permits/{id}",
		Summary:     "Update permit fields",
		Description: "Edits descriptive fields only. Status changes go through the transition endpoint so the history stays append-only.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdatePermitRequest `json:"body"`
	}) (*struct {
		Body domain.Permit `json:"body"`
	}, error) {
		p, err := e.UpdatePermit(input.ID, input.Body.patch())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Permit `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-permit-status",
		Method:      http.MethodPost,
		Path:        "/permits/{id}/status",
		Summary:     "Transition permit status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body TransitionStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Permit `json:"body"`
	}, error) {
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		p, err := e.TransitionStatus(input.ID, input.Body.Status, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Permit `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-permit",
		Method:      http.MethodDelete,
		Path:        "/permits/{id}",
		Summary:     "Delete permit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeletePermit(input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerInspections(api huma.API, e *engine.Engine, now func() time.Time) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-inspection",
		Method:        http.MethodPost,
		Path:          "/permits/{id}/inspections",
		Summary:       "Add inspection",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body AddInspectionRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		insp, err := e.AddInspection(input.ID, input.Body.draft())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: insp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-inspection",
		Method:      http.MethodPatch,
		Path:        "/permits/{id}/inspections/{inspection_id}",
		Summary:     "Update inspection",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID           string                  `path:"id"`
		InspectionID string                  `path:"inspection_id"`
		Body         UpdateInspectionRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		patch := input.Body.patch()
		// Completing an inspection without an explicit completion date
		// stamps the current time.
		if patch.Status != nil && *patch.Status == domain.InspectionCompleted && patch.CompletedDate == nil {
			ts := now().UTC().Format(time.RFC3339)
			patch.CompletedDate = &ts
		}
		insp, err := e.UpdateInspection(input.ID, input.InspectionID, patch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: insp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-inspection",
		Method:      http.MethodDelete,
		Path:        "/permits/{id}/inspections/{inspection_id}",
		Summary:     "Delete inspection",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID           string `path:"id"`
		InspectionID string `path:"inspection_id"`
	}) (*struct{}, error) {
		if err := e.DeleteInspection(input.ID, input.InspectionID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDocuments(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-document",
		Method:        http.MethodPost,
		Path:          "/permits/{id}/documents",
		Summary:       "Attach document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body AddDocumentRequest `json:"body"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		doc, err := e.AddDocument(input.ID, engine.DocumentDraft{
			Name: input.Body.Name,
			Type: input.Body.Type,
			URL:  input.Body.URL,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-document",
		Method:      http.MethodDelete,
		Path:        "/permits/{id}/documents/{document_id}",
		Summary:     "Remove document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID         string `path:"id"`
		DocumentID string `path:"document_id"`
	}) (*struct{}, error) {
		if err := e.DeleteDocument(input.ID, input.DocumentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMunicipalities(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-municipality",
		Method:        http.MethodPost,
		Path:          "/municipalities",
		Summary:       "Add municipality",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body MunicipalityRequest `json:"body"`
	}) (*struct {
		Body domain.Municipality `json:"body"`
	}, error) {
		m, err := e.AddMunicipality(input.Body.draft())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Municipality `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-municipalities",
		Method:      http.MethodGet,
		Path:        "/municipalities",
		Summary:     "List municipalities",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Municipality `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Municipality `json:"body"`
		}{Body: e.ListMunicipalities()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-municipality",
		Method:      http.MethodGet,
		Path:        "/municipalities/{id}",
		Summary:     "Get municipality",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Municipality `json:"body"`
	}, error) {
		m, err := e.GetMunicipality(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Municipality `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-municipality",
		Method:      http.MethodPatch,
		Path:        "/municipalities/{id}",
		Summary:     "Update municipality",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body UpdateMunicipalityRequest `json:"body"`
	}) (*struct {
		Body domain.Municipality `json:"body"`
	}, error) {
		m, err := e.UpdateMunicipality(input.ID, input.Body.patch())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Municipality `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-municipality",
		Method:      http.MethodDelete,
		Path:        "/municipalities/{id}",
		Summary:     "Delete municipality",
		Description: "Permits referencing the deleted municipality keep the raw id and render it as their label.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteMunicipality(input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStats(api huma.API, e *engine.Engine, now func() time.Time) {
	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Dashboard counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsResponse `json:"body"`
	}, error) {
		ts := now()
		return &struct {
			Body StatsResponse `json:"body"`
		}{Body: StatsResponse{
			Overview:    stats.Compute(e.ListPermits(""), ts),
			GeneratedAt: ts.UTC().Format(time.RFC3339),
		}}, nil
	})
}

// registerExport serves CSV outside huma: the payload is a file
// download, not a JSON schema.
func registerExport(r chi.Router, basePath string, e *engine.Engine, now func() time.Time) {
	r.Get(path.Join(basePath, "export/permits.csv"), func(w http.ResponseWriter, req *http.Request) {
		// Build the document before touching the response so a failure
		// cannot trail a committed 200.
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, e.ListPermits("")); err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "export failed", nil))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(now())))
		_, _ = buf.WriteTo(w)
	})
}
