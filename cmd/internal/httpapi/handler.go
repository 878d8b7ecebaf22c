// Package httpapi exposes the HTTP equivalents of the realtime join surface:
// access-code lookup, join, and presenter-only participant listing.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/accesscode"
	"livedeck/cmd/internal/control"
	"livedeck/cmd/internal/join"
	"livedeck/cmd/internal/participant"
	"livedeck/cmd/internal/presentation"
	v1 "livedeck/contracts/realtime/v1"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const (
	defaultMaxBodyBytes = 4 << 10
	defaultRateLimit    = 120
	defaultRateWindow   = time.Minute
)

// JoinService is the subset of *join.Coordinator the handlers need.
type JoinService interface {
	Execute(ctx context.Context, req join.Request) join.Result
	LookupAccessCode(ctx context.Context, raw, clientIP string) join.Info
	List(presentationID string) []participant.Session
}

// Authorizer checks presentation ownership (typically *control.Coordinator).
type Authorizer interface {
	Watch(ctx context.Context, presentationID, presenterID string) control.Result
}

// TokenVerifier resolves a presenter bearer token to a presenter id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Config controls request limits.
type Config struct {
	MaxBodyBytes int64
	TrustProxy   bool
	// RateLimit requests per RateWindow per client IP across /api/. 0 disables.
	RateLimit  int
	RateWindow time.Duration
}

// DefaultConfig returns conservative limits.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: defaultMaxBodyBytes,
		RateLimit:    defaultRateLimit,
		RateWindow:   defaultRateWindow,
	}
}

// Handler serves /api/.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	joins    JoinService
	authz    Authorizer
	verifier TokenVerifier
	validate *validator.Validate
}

// HandlerOption configures optional dependencies.
type HandlerOption func(*Handler)

// WithPresenterAuth enables the presenter-only endpoints.
func WithPresenterAuth(v TokenVerifier, a Authorizer) HandlerOption {
	return func(h *Handler) {
		h.verifier = v
		h.authz = a
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, joins JoinService, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if joins == nil {
		return nil, errors.New("httpapi: nil join service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		joins:    joins,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts the API under /api/ on mux, behind the per-IP limiter.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("/api/", h.Routes())
}

// Routes returns the API handler with the per-IP limiter applied.
func (h *Handler) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/access-codes/{code}", h.handleAccessCode)
	api.HandleFunc("POST /api/join", h.handleJoin)
	api.HandleFunc("GET /api/presentations/{id}/participants", h.handleParticipants)

	if h.cfg.RateLimit <= 0 {
		return api
	}

	keyFunc := httprate.KeyByIP
	if h.cfg.TrustProxy {
		keyFunc = httprate.KeyByRealIP
	}
	limit := httprate.Limit(h.cfg.RateLimit, h.cfg.RateWindow,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.log.Info("api.rate_limited", "path", r.URL.Path, "client_ip", ClientIP(r, h.cfg.TrustProxy))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		}),
	)
	return limit(api)
}

// ---- request / response shapes ----

type joinRequest struct {
	AccessCode      string `json:"accessCode" validate:"required,max=16"`
	ParticipantName string `json:"participantName,omitempty" validate:"max=64"`
	SocketID        string `json:"socketId" validate:"required,max=64"`
}

type accessCodeResponse struct {
	Status            join.InfoStatus          `json:"status"`
	Message           string                   `json:"message,omitempty"`
	RetryAfterMinutes int                      `json:"retryAfterMinutes,omitempty"`
	Presentation      *v1.PresentationSnapshot `json:"presentation,omitempty"`
	ParticipantCount  int                      `json:"participantCount"`
	ExpiresAt         *time.Time               `json:"expiresAt,omitempty"`
	RemainingMinutes  *int                     `json:"remainingMinutes,omitempty"`
}

type participantsResponse struct {
	PresentationID string                   `json:"presentationId"`
	Count          int                      `json:"count"`
	Participants   []v1.ParticipantSnapshot `json:"participants"`
}

// ---- handlers ----

func (h *Handler) handleAccessCode(w http.ResponseWriter, r *http.Request) {
	info := h.joins.LookupAccessCode(r.Context(), r.PathValue("code"), ClientIP(r, h.cfg.TrustProxy))

	resp := accessCodeResponse{
		Status:            info.Status,
		Message:           info.Message,
		RetryAfterMinutes: info.RetryAfterMinutes,
		Presentation:      info.Presentation,
		ParticipantCount:  info.ParticipantCount,
		ExpiresAt:         info.ExpiresAt,
		RemainingMinutes:  info.RemainingMinutes,
	}

	switch {
	case errors.Is(info.Err, abuse.ErrRateLimited):
		setRetryAfter(w, info.RetryAfterMinutes)
		writeJSON(w, http.StatusTooManyRequests, resp)
	case info.Status == join.InfoOK, info.Status == join.InfoExpired:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(info.Err, accesscode.ErrInvalidFormat):
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(info.Err, join.ErrInvalidCode):
		writeJSON(w, http.StatusNotFound, resp)
	default:
		writeError(w, http.StatusInternalServerError, "internal", join.MsgInternal)
	}
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		status, code := decodeStatus(err)
		writeError(w, status, code, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", join.MsgInvalidRequest)
		return
	}

	res := h.joins.Execute(r.Context(), join.Request{
		AccessCode:      req.AccessCode,
		ParticipantName: req.ParticipantName,
		SocketID:        req.SocketID,
		ClientIP:        ClientIP(r, h.cfg.TrustProxy),
	})

	status := joinStatus(res)
	if status == http.StatusTooManyRequests {
		setRetryAfter(w, res.RetryAfterMinutes)
	}
	writeJSON(w, status, res.Payload())
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil || h.authz == nil {
		writeError(w, http.StatusServiceUnavailable, "auth_disabled", "presenter authentication not configured")
		return
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "presenter token required")
		return
	}
	presenterID, err := h.verifier.Verify(authz)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	pid := r.PathValue("id")
	if res := h.authz.Watch(r.Context(), pid, presenterID); !res.Success {
		switch {
		case errors.Is(res.Err, presentation.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", res.Message)
		case errors.Is(res.Err, presentation.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", res.Message)
		default:
			writeError(w, http.StatusInternalServerError, "internal", res.Message)
		}
		return
	}

	list := h.joins.List(pid)
	writeJSON(w, http.StatusOK, participantsResponse{
		PresentationID: pid,
		Count:          len(list),
		Participants: lo.Map(list, func(s participant.Session, _ int) v1.ParticipantSnapshot {
			return v1.ParticipantSnapshot{
				SessionID:       s.SessionID,
				PresentationID:  s.PresentationID,
				ParticipantName: s.ParticipantName,
				IsAnonymous:     s.IsAnonymous,
				JoinedAt:        s.JoinedAt,
			}
		}),
	})
}

func joinStatus(res join.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch {
	case errors.Is(res.Err, abuse.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(res.Err, accesscode.ErrInvalidFormat), errors.Is(res.Err, join.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(res.Err, join.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(res.Err, presentation.ErrNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func setRetryAfter(w http.ResponseWriter, minutes int) {
	if minutes > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(minutes*60))
	}
}
