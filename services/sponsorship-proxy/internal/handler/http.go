package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	sharedErrors "github.com/quangdang46/talent-passport/shared/errors"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/monitoring"
	"github.com/quangdang46/talent-passport/shared/resilience"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

const maxBodyBytes = 1 << 20

// HealthFunc reports dependency state for /health
type HealthFunc func() map[string]string

type Handler struct {
	service domain.SponsorshipService
	health  HealthFunc
	logger  *logging.Logger
}

func NewHandler(service domain.SponsorshipService, health HealthFunc, logger *logging.Logger) *Handler {
	return &Handler{service: service, health: health, logger: logger}
}

// Register mounts the API routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sponsorship/status", h.status)
	mux.HandleFunc("POST /api/sponsorship/sponsor", h.sponsor)
	mux.HandleFunc("POST /api/sponsorship/execute", h.execute)
	mux.HandleFunc("GET /health", h.healthCheck)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

func (h *Handler) sponsor(w http.ResponseWriter, r *http.Request) {
	var req domain.SponsorRequest
	if err := decode(w, r, &req); err != nil {
		sharedErrors.WriteHTTP(w, err)
		return
	}

	out, err := h.service.Sponsor(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "sponsor", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecuteRequest
	if err := decode(w, r, &req); err != nil {
		sharedErrors.WriteHTTP(w, err)
		return
	}

	out, err := h.service.Execute(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "execute", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{}
	if h.health != nil {
		checks = h.health()
	}

	status := http.StatusOK
	for _, state := range checks {
		if state != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	mapped := MapError(err)
	log := h.logger.WithContext(r.Context()).WithError(err).WithField("operation", operation)
	if mapped.StatusCode >= http.StatusInternalServerError {
		log.Error("Sponsorship request failed")
		if mapped.Type == sharedErrors.ErrorTypeInternal {
			monitoring.CaptureError(err, map[string]string{"operation": operation}, nil)
		}
	} else {
		log.Info("Sponsorship request refused")
	}
	sharedErrors.WriteHTTP(w, mapped)
}

// MapError turns service failures into API errors.
// Upstream 4xx keeps the upstream message; timeouts become 504, other 5xx and network failures 502.
func MapError(err error) *sharedErrors.Error {
	var fieldErr *domain.FieldError
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.As(err, &fieldErr):
		return sharedErrors.InvalidInput(fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, domain.ErrSponsorshipDisabled):
		return sharedErrors.Unavailable("sponsorship")
	case errors.Is(err, domain.ErrQuotaExceeded):
		return sharedErrors.New(sharedErrors.ErrorTypeRateLimited, "QUOTA_EXCEEDED", err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		return sharedErrors.Unavailable("sponsor api").WithCause(err)
	case errors.As(err, &upstreamErr) && errors.Is(err, domain.ErrUpstreamRejected):
		if upstreamErr.StatusCode == http.StatusBadRequest {
			return sharedErrors.New(sharedErrors.ErrorTypeInvalidInput, "UPSTREAM_REJECTED", upstreamErr.Message)
		}
		return sharedErrors.Unprocessable(upstreamErr.Message)
	case timeout.IsTimeout(err):
		return sharedErrors.Timeout("sponsor api").WithCause(err)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return sharedErrors.BadGateway("sponsor api", err)
	}
	return sharedErrors.Internal("internal server error").WithCause(err)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return sharedErrors.InvalidInput("body", "must be a JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
