package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/recovery"
)

const (
	CallbackPath = "/auth/callback"
	CapturePath  = "/auth/callback/capture"
)

// Completer is the part of the login flow the listener drives
type Completer interface {
	CaptureToken(ctx context.Context, rawToken string) error
	HandleCallback(ctx context.Context, callbackURL string) (*domain.LoginResult, error)
}

// Outcome is the result of the first completed callback
type Outcome struct {
	Result *domain.LoginResult
	Err    error
}

// Server is a loopback listener for the identity provider redirect.
// Only the first completed callback is reported.
type Server struct {
	addr      string
	completer Completer
	logger    *logging.Logger
	server    *http.Server
	listener  net.Listener
	results   chan Outcome
}

func NewServer(addr string, completer Completer, logger *logging.Logger) *Server {
	s := &Server{
		addr:      addr,
		completer: completer,
		logger:    logger,
		results:   make(chan Outcome, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	mux.HandleFunc(CapturePath, s.handleCapture)

	panics := recovery.NewPanicHandler(logger, recovery.WithStackLogging(true))
	s.server = &http.Server{
		Handler:           panics.HTTPMiddleware(logging.CorrelationMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds the address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	recovery.SafeGoWithContext(context.Background(), s.logger, func(context.Context) {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Callback listener stopped")
		}
	})

	s.logger.WithField("addr", ln.Addr().String()).Info("Waiting for identity provider redirect")
	return nil
}

// Addr is the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Wait blocks until a callback completes or ctx ends
func (s *Server) Wait(ctx context.Context) (*domain.LoginResult, error) {
	select {
	case out := <-s.results:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleCallback completes directly when the provider used the query string.
// Otherwise the token is in the fragment, which only the browser can see.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("id_token") == "" && q.Get("error") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = forwardPage.Execute(w, CapturePath)
		return
	}
	s.complete(w, r)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.complete(w, r)
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.WithContext(ctx)

	if raw := r.URL.Query().Get("id_token"); raw != "" {
		if err := s.completer.CaptureToken(ctx, raw); err != nil {
			log.WithError(err).Warn("Failed to capture identity token")
		}
	}

	callbackURL := (&url.URL{Scheme: "http", Host: r.Host, Path: CallbackPath, RawQuery: r.URL.RawQuery}).String()
	result, err := s.completer.HandleCallback(ctx, callbackURL)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err != nil {
		log.WithError(err).Warn("Callback did not complete the login")
		title := "Sign-in not completed"
		if result != nil && result.State.Terminal() {
			title = "Sign-in failed"
		}
		w.WriteHeader(statusFor(err))
		_ = donePage.Execute(w, pageData{Title: title, Message: messageFor(err)})
	} else {
		_ = donePage.Execute(w, pageData{Title: "Signed in", Message: "You can close this window and return to the terminal."})
	}

	// a missing token is worth another try from the browser
	if errors.Is(err, domain.ErrTokenNotFound) {
		return
	}
	select {
	case s.results <- Outcome{Result: result, Err: err}:
	default:
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProviderDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNonceMismatch), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// messageFor keeps upstream detail out of the browser; the log has the full error
func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return "No identity token arrived. Try signing in again from the browser."
	case errors.Is(err, domain.ErrProviderDenied):
		return "The identity provider did not grant access."
	case errors.Is(err, domain.ErrNonceMismatch):
		return "This sign-in does not belong to the current login attempt. Run passport login again."
	case errors.Is(err, domain.ErrNoPendingLogin):
		return "No login attempt is pending. Run passport login again."
	case errors.Is(err, domain.ErrInvalidToken):
		return "The identity token was not accepted."
	}
	return "Sign-in could not be completed. Check the terminal for details."
}

type pageData struct {
	Title   string
	Message string
}

var forwardPage = template.Must(template.New("forward").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in</title></head>
<body><p>Completing sign-in...</p>
<script>
var params = window.location.hash.substring(1);
window.location.replace({{.}} + "?" + params);
</script></body></html>`))

var donePage = template.Must(template.New("done").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>`))
