package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mpcasos/internal/apperr"
	"mpcasos/internal/domain"
	"mpcasos/internal/logging"
	"mpcasos/internal/reassign"
	"mpcasos/internal/repo"
)

// Assigner runs fiscal assignment attempts. *reassign.Service implements it.
type Assigner interface {
	Assign(ctx context.Context, caseID, fiscalID, requesterID int64) (reassign.Result, error)
	Reassign(ctx context.Context, caseID, newFiscalID, requesterID int64) (reassign.Result, error)
}

// CaseRepository serves the case endpoints. repo.Repo implements it.
type CaseRepository interface {
	GetCaso(ctx context.Context, id int64) (domain.Caso, error)
	SetEstadoCaso(ctx context.Context, id int64, estado string) error
	ListHistorial(ctx context.Context, idCaso int64) ([]domain.HistorialAsignacion, error)
	ListFiscalesActivos(ctx context.Context) ([]domain.Fiscal, error)
	ListEstados(ctx context.Context) ([]domain.EstadoCaso, error)
}

// Config for the HTTP API handler.
type Config struct {
	Assigner Assigner
	Cases    CaseRepository
	BasePath string
	Auth     AuthConfig
	Logger   *logrus.Logger
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type apiErrorBody struct {
	Kind           string         `json:"kind" example:"business-rule-violation"`
	Code           string         `json:"code" example:"BUSINESS_RULE_VIOLATION"`
	Message        string         `json:"message" example:"El fiscal no está activo"`
	HTTPStatus     int            `json:"http_status" example:"400"`
	DisplayMessage string         `json:"display_message,omitempty" example:"No se pudo reasignar el fiscal: El fiscal no está activo"`
	Details        map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the case API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Assigner == nil || cfg.Cases == nil {
		return nil, errors.New("server: assigner and case reader are required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema/request validation errors are reported as 400.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Ministerio Público - Casos API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerCatalogs(group, cfg.Cases)
	registerCasos(group, cfg.Cases)
	registerAssignments(group, cfg.Assigner)
	registerOpenAPI(router, api, basePath)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return router, nil
}

func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))
			entry.WithFields(logrus.Fields{
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("http.request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Kind:       defaultKindForStatus(status),
			Code:       code,
			Message:    message,
			HTTPStatus: status,
			Details:    details,
		},
	}
}

func fromAppError(e *apperr.Error) *apiError {
	return &apiError{
		status: e.Status,
		Body: apiErrorBody{
			Kind:       string(e.Kind),
			Code:       e.Code,
			Message:    e.Message,
			HTTPStatus: e.Status,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if e, ok := apperr.As(err); ok {
		out := fromAppError(e)
		if e.Kind == apperr.KindAuditWriteFailure {
			out.Body.Details = auditFailureDetails(e)
		}
		return out
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, apperr.CodeNotFound, "recurso no encontrado", nil)
	}
	return newAPIError(http.StatusInternalServerError, apperr.CodeInternal, "error interno", nil)
}

// handleAssignmentError adds the user-facing prefix to rule violations.
func handleAssignmentError(err error, failurePrefix string) huma.StatusError {
	se := handleError(err)
	if ae, ok := se.(*apiError); ok && ae.Body.Kind == string(apperr.KindBusinessRule) {
		ae.Body.DisplayMessage = failurePrefix + ": " + ae.Body.Message
	}
	return se
}

func auditFailureDetails(e *apperr.Error) map[string]any {
	var merr *multierror.Error
	if !errors.As(e.Cause, &merr) {
		return nil
	}
	details := map[string]any{}
	for _, inner := range merr.Errors {
		if v, ok := apperr.As(inner); ok && v.Kind == apperr.KindBusinessRule {
			details["rejection"] = v.Message
		} else {
			details["audit_error"] = inner.Error()
		}
	}
	return details
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeAuthentication
	case http.StatusForbidden:
		return apperr.CodeAuthorization
	case http.StatusNotFound:
		return apperr.CodeNotFound
	default:
		return apperr.CodeInternal
	}
}

func defaultKindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindValidation)
	case http.StatusUnauthorized:
		return string(apperr.KindAuthentication)
	case http.StatusForbidden:
		return string(apperr.KindAuthorization)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	default:
		return string(apperr.KindInfrastructure)
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

// ensureDefaultErrorResponses registers the envelope schema and points every
// operation's default response at it.
func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.Schemas == nil {
		oas.Components.Schemas = huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	}
	errRef := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: errRef.Ref},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="es">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Casos API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
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

func registerCatalogs(api huma.API, cases CaseRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "list-fiscales-activos",
		Method:      http.MethodGet,
		Path:        "/casos/fiscales",
		Summary:     "List active fiscales",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FiscalesResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, ""); err != nil {
			return nil, handleError(err)
		}
		items, err := cases.ListFiscalesActivos(ctx)
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al listar fiscales", err))
		}
		if items == nil {
			items = []domain.Fiscal{}
		}
		return &struct {
			Body FiscalesResponse `json:"body"`
		}{Body: FiscalesResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-estados-caso",
		Method:      http.MethodGet,
		Path:        "/casos/estados",
		Summary:     "List case states",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EstadosResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, ""); err != nil {
			return nil, handleError(err)
		}
		items, err := cases.ListEstados(ctx)
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al listar estados", err))
		}
		return &struct {
			Body EstadosResponse `json:"body"`
		}{Body: EstadosResponse{Items: items}}, nil
	})
}

func registerCasos(api huma.API, cases CaseRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "get-caso",
		Method:      http.MethodGet,
		Path:        "/casos/{id}",
		Summary:     "Get case with assignment history",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body CasoResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, domain.PermCaseView); err != nil {
			return nil, handleError(err)
		}
		if input.ID <= 0 {
			return nil, handleError(apperr.Validation("ID de caso inválido"))
		}
		caso, err := cases.GetCaso(ctx, input.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, handleError(apperr.NotFound("Caso no encontrado"))
		}
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al obtener el caso", err))
		}
		hist, err := cases.ListHistorial(ctx, input.ID)
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al obtener el historial", err))
		}
		if hist == nil {
			hist = []domain.HistorialAsignacion{}
		}
		return &struct {
			Body CasoResponse `json:"body"`
		}{Body: CasoResponse{Caso: caso, Historial: hist}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-estado-caso",
		Method:      http.MethodPut,
		Path:        "/casos/{id}/estado",
		Summary:     "Change the state of a case",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body EstadoCasoRequest `json:"body"`
	}) (*struct {
		Body domain.Caso `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, domain.PermCaseEdit); err != nil {
			return nil, handleError(err)
		}
		if input.ID <= 0 {
			return nil, handleError(apperr.Validation("ID de caso inválido"))
		}
		if !domain.ValidEstado(input.Body.Estado) {
			return nil, handleError(apperr.Validation("estado de caso desconocido: " + input.Body.Estado))
		}
		err := cases.SetEstadoCaso(ctx, input.ID, input.Body.Estado)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, handleError(apperr.NotFound("Caso no encontrado"))
		}
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al actualizar el caso", err))
		}
		if l := logging.FromContext(ctx); l != nil {
			l.WithFields(logrus.Fields{"case_id": input.ID, "estado": input.Body.Estado}).Info("caso.estado.updated")
		}
		caso, err := cases.GetCaso(ctx, input.ID)
		if err != nil {
			return nil, handleError(apperr.Infrastructure("error al obtener el caso", err))
		}
		return &struct {
			Body domain.Caso `json:"body"`
		}{Body: caso}, nil
	})
}

func registerAssignments(api huma.API, svc Assigner) {
	assignmentErrors := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusInternalServerError,
	}

	huma.Register(api, huma.Operation{
		OperationID: "asignar-fiscal",
		Method:      http.MethodPost,
		Path:        "/casos/{id}/asignar-fiscal",
		Summary:     "Assign a fiscal to a case",
		Errors:      assignmentErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body AsignarFiscalRequest `json:"body"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, domain.PermCaseAssign)
		if err != nil {
			return nil, handleError(err)
		}
		if input.ID <= 0 {
			return nil, handleError(apperr.Validation("ID de caso inválido"))
		}
		if input.Body.IDFiscal <= 0 {
			return nil, handleError(apperr.Validation("ID de fiscal inválido"))
		}
		res, err := svc.Assign(ctx, input.ID, input.Body.IDFiscal, principal.UserID)
		if err != nil {
			return nil, handleAssignmentError(err, reassign.DefaultAssignFailure)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: AssignmentResponse{Outcome: res.Outcome, Message: res.Message}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reasignar-fiscal",
		Method:      http.MethodPost,
		Path:        "/casos/{id}/reasignar-fiscal",
		Summary:     "Reassign a case to a different fiscal",
		Errors:      assignmentErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64                  `path:"id"`
		Body ReasignarFiscalRequest `json:"body"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, domain.PermCaseReassign)
		if err != nil {
			return nil, handleError(err)
		}
		if input.ID <= 0 {
			return nil, handleError(apperr.Validation("ID de caso inválido"))
		}
		fiscalID := input.Body.fiscalID()
		if fiscalID <= 0 {
			return nil, handleError(apperr.Validation("ID de nuevo fiscal inválido"))
		}
		res, err := svc.Reassign(ctx, input.ID, fiscalID, principal.UserID)
		if err != nil {
			return nil, handleAssignmentError(err, reassign.DefaultReassignFailure)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: AssignmentResponse{Outcome: res.Outcome, Message: res.Message}}, nil
	})
}
