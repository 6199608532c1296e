package mpcasossdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the case API.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/api",
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// Result is returned by successful assignment calls.
type Result struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

type Caso struct {
	ID               int64   `json:"idCaso"`
	NumeroCasoUnico  string  `json:"numeroCasoUnico"`
	Descripcion      string  `json:"descripcion"`
	IDEstadoCaso     int64   `json:"idEstadoCaso"`
	Estado           string  `json:"estado"`
	IDFiscalAsignado *int64  `json:"idFiscalAsignado,omitempty"`
	NombreFiscal     *string `json:"nombreFiscal,omitempty"`
	FechaAsignacion  *string `json:"fechaAsignacion,omitempty"`
}

type HistorialAsignacion struct {
	IDFiscalAnterior *int64 `json:"idFiscalAnterior,omitempty"`
	IDFiscalNuevo    int64  `json:"idFiscalNuevo"`
	IDUsuario        int64  `json:"idUsuario"`
	Fecha            string `json:"fecha"`
}

// CasoDetalle is a case with its assignment history.
type CasoDetalle struct {
	Caso      Caso                  `json:"caso"`
	Historial []HistorialAsignacion `json:"historial"`
}

type Fiscal struct {
	ID             int64  `json:"idFiscal"`
	IDFiscalia     int64  `json:"idFiscalia"`
	NombreFiscalia string `json:"nombreFiscalia,omitempty"`
	PrimerNombre   string `json:"primerNombre"`
	PrimerApellido string `json:"primerApellido"`
	Activo         bool   `json:"activo"`
}

// APIError wraps non-2xx responses. Envelope fields are filled when the
// body carries the standard error envelope.
type APIError struct {
	StatusCode     int
	Kind           string
	Code           string
	Message        string
	DisplayMessage string
	Body           string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Rejected reports whether the server refused the change for a business rule.
func (e *APIError) Rejected() bool {
	return e.Code == "BUSINESS_RULE_VIOLATION"
}

// AssignFiscal assigns fiscalID to a case.
func (c *Client) AssignFiscal(ctx context.Context, caseID, fiscalID int64) (Result, error) {
	var resp Result
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("casos/%d/asignar-fiscal", caseID), map[string]any{"idFiscal": fiscalID}, &resp)
	return resp, err
}

// ReassignFiscal moves a case to newFiscalID.
func (c *Client) ReassignFiscal(ctx context.Context, caseID, newFiscalID int64) (Result, error) {
	var resp Result
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("casos/%d/reasignar-fiscal", caseID), map[string]any{"idNuevoFiscal": newFiscalID}, &resp)
	return resp, err
}

func (c *Client) GetCaso(ctx context.Context, caseID int64) (CasoDetalle, error) {
	var resp CasoDetalle
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("casos/%d", caseID), nil, &resp)
	return resp, err
}

// ListFiscales returns active fiscales.
func (c *Client) ListFiscales(ctx context.Context) ([]Fiscal, error) {
	var resp struct {
		Items []Fiscal `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "casos/fiscales", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Kind           string `json:"kind"`
			Code           string `json:"code"`
			Message        string `json:"message"`
			DisplayMessage string `json:"display_message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Kind = env.Error.Kind
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.DisplayMessage = env.Error.DisplayMessage
	}
	return apiErr
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
