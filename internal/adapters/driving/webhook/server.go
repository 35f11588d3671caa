// Package webhook provides the HTTP push trigger.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// SecretHeader carries the shared secret as an alternative to the body.
const SecretHeader = "X-Webhook-Secret"

// maxBodyBytes bounds the request body read while looking for the secret.
const maxBodyBytes = 64 << 10

// Server accepts regeneration requests over HTTP and hands them to the
// coordinator. It never runs the pipeline itself.
type Server struct {
	addr        string
	sourceID    string
	secret      []byte
	allowed     []netip.Prefix
	coordinator driving.Coordinator

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a server from the webhook configuration. It refuses an empty
// or placeholder secret.
func New(cfg domain.WebhookConfig, sourceID string, coordinator driving.Coordinator) (*Server, error) {
	if cfg.Secret == "" || cfg.Secret == domain.PlaceholderSecret {
		return nil, fmt.Errorf("%w: webhook.secret must be set to a real secret", domain.ErrInvalidInput)
	}
	allowed := make([]netip.Prefix, 0, len(cfg.AllowedIPs))
	for _, entry := range cfg.AllowedIPs {
		p, err := domain.ParseAllowedIP(entry)
		if err != nil {
			return nil, err
		}
		allowed = append(allowed, p)
	}
	return &Server{
		addr:        cfg.Addr(),
		sourceID:    sourceID,
		secret:      []byte(cfg.Secret),
		allowed:     allowed,
		coordinator: coordinator,
	}, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /update", s.handleUpdate)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Listen binds the configured address. Start calls it when needed; call it
// first to learn the bound address of port 0.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}
	server, listener := s.server, s.listener
	s.mu.Unlock()

	logger.Info("Webhook listening on http://%s/update", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return s.Stop()
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	client := clientAddr(r)
	if !s.ipAllowed(client) {
		logger.Warn("Webhook request from %s rejected: address not allowed", client)
		writeJSON(w, http.StatusForbidden, response{Status: domain.AckRejectedIP, Message: "address not allowed"})
		return
	}
	if !s.authorised(s.secretFrom(r)) {
		logger.Warn("Webhook request from %s rejected: bad secret", client)
		writeJSON(w, http.StatusUnauthorized, response{Status: domain.AckRejectedAuth, Message: "invalid secret"})
		return
	}

	if wantsWait(r) {
		// The run outlives a dropped client.
		ctx := context.WithoutCancel(r.Context())
		ack, result := s.coordinator.Trigger(ctx, s.sourceID, domain.ReasonWebhook)
		s.respond(w, ack, result)
		return
	}
	s.respond(w, s.coordinator.Submit(s.sourceID, domain.ReasonWebhook), nil)
}

func (s *Server) respond(w http.ResponseWriter, ack domain.TriggerAck, result *domain.RunResult) {
	resp := response{Status: ack, SourceID: s.sourceID}
	code := http.StatusOK
	switch {
	case ack == domain.AckPending:
		code = http.StatusAccepted
		resp.Message = "run in progress, update queued"
	case ack == domain.AckUnknownSource:
		code = http.StatusNotFound
		resp.Message = "unknown source"
	case result != nil:
		resp.Run = newRunView(result)
		resp.Message = result.Summary()
		switch {
		case errors.Is(result.Err, domain.ErrNotFound):
			code = http.StatusNotFound
		case result.Outcome == domain.OutcomeFailed:
			code = http.StatusInternalServerError
		}
	default:
		resp.Message = "update started"
	}
	logger.Info("Webhook trigger for %s: %s", s.sourceID, ack)
	writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.coordinator.Status(s.sourceID)
	view := statusView{
		SourceID: st.SourceID,
		Running:  st.Running,
		Pending:  st.Pending,
		Runs:     st.Runs,
	}
	if st.LastResult != nil {
		view.LastRun = newRunView(st.LastResult)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ipAllowed reports whether addr is inside the allow-list. An empty list
// allows every address.
func (s *Server) ipAllowed(addr netip.Addr) bool {
	if len(s.allowed) == 0 {
		return true
	}
	if !addr.IsValid() {
		return false
	}
	for _, p := range s.allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (s *Server) authorised(secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), s.secret) == 1
}

// secretFrom reads the secret from the header, a bearer token, a JSON
// body or a form field, in that order.
func (s *Server) secretFrom(r *http.Request) string {
	if v := r.Header.Get(SecretHeader); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Secret string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}
		return body.Secret
	}
	return r.PostFormValue("secret")
}

// clientAddr returns the peer address of the connection. Forwarding
// headers are ignored.
func clientAddr(r *http.Request) netip.Addr {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		addr, err := netip.ParseAddr(r.RemoteAddr)
		if err != nil {
			return netip.Addr{}
		}
		return addr.Unmap()
	}
	return ap.Addr().Unmap()
}

func wantsWait(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("wait")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

type response struct {
	Status   domain.TriggerAck `json:"status"`
	SourceID string            `json:"source_id,omitempty"`
	Message  string            `json:"message,omitempty"`
	Run      *runView          `json:"run,omitempty"`
}

type runView struct {
	ID             string           `json:"id"`
	Reason         string           `json:"reason"`
	Outcome        domain.Outcome   `json:"outcome"`
	ErrorKind      domain.ErrorKind `json:"error_kind,omitempty"`
	Error          string           `json:"error,omitempty"`
	ItemsExtracted int              `json:"items_extracted"`
	ItemsRendered  int              `json:"items_rendered"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        time.Time        `json:"ended_at"`
}

func newRunView(r *domain.RunResult) *runView {
	v := &runView{
		ID:             r.ID,
		Reason:         string(r.Reason),
		Outcome:        r.Outcome,
		ErrorKind:      r.ErrorKind,
		ItemsExtracted: r.ItemsExtracted,
		ItemsRendered:  r.ItemsRendered,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

type statusView struct {
	SourceID string   `json:"source_id"`
	Running  bool     `json:"running"`
	Pending  bool     `json:"pending"`
	Runs     int      `json:"runs"`
	LastRun  *runView `json:"last_run,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
