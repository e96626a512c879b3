package auth

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/giantswarm/apiprobe/pkg/oauth"
	pkgstrings "github.com/giantswarm/apiprobe/pkg/strings"
)

const (
	// DefaultCallbackTimeout is how long to wait for the OAuth callback.
	DefaultCallbackTimeout = 5 * time.Minute

	// CallbackPath is the path the authorization server redirects to.
	CallbackPath = "/callback"

	// shutdownGrace bounds how long in-flight responses may finish before
	// the remaining connections are closed.
	shutdownGrace = 2 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var callbackTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// CallbackState is the lifecycle state of a CallbackServer.
type CallbackState int

const (
	StateStarting CallbackState = iota
	StateListening
	StateCompleted
	StateFailed
	StateTimedOut
)

// String returns the lower-case state name.
func (s CallbackState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether the state can no longer change.
func (s CallbackState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// CallbackServerConfig configures a CallbackServer.
type CallbackServerConfig struct {
	// Port to bind on 127.0.0.1. Zero lets the OS choose a free port.
	Port int

	// ExpectedState is the state parameter issued for this flow.
	ExpectedState string

	// Timeout defaults to DefaultCallbackTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// CallbackServer is a temporary loopback HTTP server that receives exactly
// one OAuth authorization callback.
//
// The first of callback, timeout, cancellation or Stop settles the outcome;
// later events are ignored.
type CallbackServer struct {
	expectedState string
	timeout       time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	state    CallbackState
	port     int
	listener net.Listener
	server   *http.Server
	conns    map[net.Conn]struct{}
	timer    *time.Timer
	code     string
	err      error

	settleOnce sync.Once
	stopOnce   sync.Once
	done       chan struct{}
}

// NewCallbackServer creates a callback server. Call Start to bind it.
func NewCallbackServer(cfg CallbackServerConfig) *CallbackServer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackServer{
		expectedState: cfg.ExpectedState,
		timeout:       timeout,
		logger:        logger,
		state:         StateStarting,
		port:          cfg.Port,
		conns:         make(map[net.Conn]struct{}),
		done:          make(chan struct{}),
	}
}

// Start binds the listener and begins serving. The timeout starts now.
func (s *CallbackServer) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.settle(StateFailed, "", fmt.Errorf("failed to start callback server on %s: %w", addr, err))
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ConnState:         s.trackConn,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.state = StateListening
	s.timer = time.AfterFunc(s.timeout, s.onTimeout)
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Debug("Callback server stopped serving", "error", err)
			s.settle(StateFailed, "", fmt.Errorf("callback server failed: %w", err))
		}
	}()

	s.logger.Debug("Callback server listening",
		"redirect_uri", s.RedirectURI(),
		"timeout", s.timeout)

	return nil
}

// RedirectURI returns the URI to register and send as redirect_uri.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", s.Port(), CallbackPath)
}

// Port returns the bound port, or the configured port before Start.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// State returns the current lifecycle state.
func (s *CallbackServer) State() CallbackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the outcome is settled.
func (s *CallbackServer) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the outcome is settled and returns the authorization
// code or the terminal error. Cancelling ctx settles the server as failed
// and stops it.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.settle(StateFailed, "", &oauth.CallbackError{
			Kind:        oauth.CallbackCancelled,
			Description: ctx.Err().Error(),
		})
		s.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.err
}

// Stop shuts the server down and closes every tracked connection.
// It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		server := s.server
		listener := s.listener
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			_ = server.Shutdown(ctx)
			cancel()
		}
		if listener != nil {
			_ = listener.Close()
		}

		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
			delete(s.conns, conn)
		}
		s.mu.Unlock()

		s.settle(StateFailed, "", &oauth.CallbackError{
			Kind:        oauth.CallbackCancelled,
			Description: "callback server stopped",
		})

		s.logger.Debug("Callback server stopped", "state", s.State().String())
	})
}

func (s *CallbackServer) onTimeout() {
	settled := s.settle(StateTimedOut, "", &oauth.CallbackError{
		Kind:        oauth.CallbackTimeout,
		Description: s.timeout.String(),
	})
	if settled {
		s.logger.Debug("Timed out waiting for authorization callback", "timeout", s.timeout)
	}
	s.Stop()
}

// settle records the outcome once and reports whether this call decided it.
func (s *CallbackServer) settle(state CallbackState, code string, err error) bool {
	settled := false
	s.settleOnce.Do(func() {
		settled = true

		s.mu.Lock()
		s.state = state
		s.code = code
		s.err = err
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()

		close(s.done)
	})
	return settled
}

func (s *CallbackServer) trackConn(conn net.Conn, state http.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case http.StateNew:
		s.conns[conn] = struct{}{}
	case http.StateClosed, http.StateHijacked:
		delete(s.conns, conn)
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	select {
	case <-s.done:
		s.render(w, http.StatusGone, "callback_completed.html", nil)
		return
	default:
	}

	query := r.URL.Query()

	var (
		state CallbackState
		code  string
		err   *oauth.CallbackError
	)

	switch {
	case query.Get("error") != "":
		state = StateFailed
		err = &oauth.CallbackError{
			Kind:        oauth.CallbackAuthorizationDenied,
			Code:        query.Get("error"),
			Description: pkgstrings.Truncate(query.Get("error_description"), pkgstrings.MaxDescriptionLen),
		}
	case query.Get("state") != s.expectedState:
		state = StateFailed
		err = &oauth.CallbackError{Kind: oauth.CallbackStateMismatch}
	case query.Get("code") == "":
		state = StateFailed
		err = &oauth.CallbackError{Kind: oauth.CallbackMissingCode}
	default:
		state = StateCompleted
		code = query.Get("code")
	}

	var settled bool
	if err != nil {
		settled = s.settle(state, "", err)
	} else {
		settled = s.settle(state, code, nil)
	}
	if !settled {
		s.render(w, http.StatusGone, "callback_completed.html", nil)
		return
	}

	if err != nil {
		s.logger.Debug("Authorization callback failed", "kind", string(err.Kind))
		s.render(w, http.StatusBadRequest, "callback_error.html", map[string]string{
			"Error":       string(err.Kind),
			"Description": err.Error(),
		})
		return
	}

	s.logger.Debug("Received authorization callback")
	s.render(w, http.StatusOK, "callback_success.html", nil)
}

func (s *CallbackServer) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackTemplates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Debug("Failed to render callback page", "template", name, "error", err)
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}
