package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/middleware"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/wizard"
)

const maxBodyBytes = 1 << 20

// Credential headers let a browser client use its own deployment.
const (
	HeaderAPIKey       = "X-RunComfy-Key"
	HeaderDeploymentID = "X-Deployment-ID"
)

type App struct {
	Wizard *wizard.Service
	Config *infra.Config
	Logger *infra.Logger
}

func NewApp(svc *wizard.Service, cfg *infra.Config, logger *infra.Logger) *App {
	if cfg == nil {
		cfg = &infra.Config{}
	}
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &App{Wizard: svc, Config: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Detail  string          `json:"detail,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, detail string) {
	a.json(w, code, errorResponse{
		Error:   errCode,
		Message: message(middleware.LocaleFromContext(r.Context()), errCode),
		Detail:  detail,
	})
}

// fail writes the response for an error returned by the wizard.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := classify(err)
	resp := errorResponse{
		Error:   errCode,
		Message: message(middleware.LocaleFromContext(r.Context()), errCode),
	}
	if code < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	if details := runcomfy.DetailsOf(err); json.Valid(details) {
		resp.Details = details
	}
	evt := a.Logger.Warn()
	if code >= http.StatusInternalServerError {
		evt = a.Logger.Error()
	}
	evt.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("error_code", errCode).
		Int("status", code).
		Msg("request failed")
	a.json(w, code, resp)
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, "invalid payload")
		return false
	}
	return true
}

// credentials prefers the caller's headers and fills gaps from configuration.
func (a *App) credentials(r *http.Request) runcomfy.Credentials {
	creds := runcomfy.Credentials{
		APIKey:       strings.TrimSpace(r.Header.Get(HeaderAPIKey)),
		DeploymentID: strings.TrimSpace(r.Header.Get(HeaderDeploymentID)),
	}
	if creds.APIKey == "" {
		creds.APIKey = a.Config.RunComfyAPIKey
	}
	if creds.DeploymentID == "" {
		creds.DeploymentID = a.Config.DeploymentID
	}
	return creds
}
