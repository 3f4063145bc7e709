// Package server provides the admin HTTP server of the AS4 gateway.
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe (storage reachable)
//   - GET /metrics - Prometheus metrics (if enabled)
//
// # PMode API (requires X-Admin-Key)
//
//   - GET  /api/pmode           - Summary of the current configuration
//   - PUT  /api/pmode           - Upload a new configuration document
//   - POST /api/pmode/refresh   - Reload the configuration from storage
//   - POST /api/pmode/resolve   - Resolve a message header to a PMode key
//   - GET  /api/mpcs/{name}     - Retention settings of a channel
//
// # Message log API (requires X-Admin-Key)
//
//   - GET /api/messages                  - Page through message logs
//   - GET /api/messages/{messageID}/status - Status of a message
//   - PUT /api/messages/{messageID}/status - Move a message to a status
//
// The kind query parameter selects user (default) or signal message logs.
//
// # Pull API (requires X-Admin-Key)
//
//   - POST /api/pull - Enqueue a pull for one channel, or for every pull
//     target when the body is empty
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/internal/config"
	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/pull"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

const maxDocumentSize = 16 << 20

// Pinger reports storage reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Trigger enqueues a pull for every pull target
type Trigger interface {
	Trigger(ctx context.Context) (int, error)
}

// Deps holds the components the server exposes
type Deps struct {
	Store      Pinger
	PModes     *pmode.Cache
	UserLogs   *messagelog.Tracker[*messagelog.UserMessageLog]
	SignalLogs *messagelog.Tracker[*messagelog.SignalMessageLog]
	// Queue and Trigger are nil when pulling is disabled
	Queue   pull.Queue
	Trigger Trigger
	// Metrics is served on the configured metrics path when set
	Metrics http.Handler
}

// Server is the admin HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	httpSrv *http.Server
	deps    Deps
}

// New creates a new server
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.adminKey is not set - admin API will reject every request")
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routing handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	var err error
	if s.config.Server.TLS.Enabled {
		err = s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.deps.Metrics != nil && s.config.Observability.Metrics.Enabled {
		mux.Handle("GET "+s.config.Observability.Metrics.Path, s.deps.Metrics)
	}

	mux.HandleFunc("GET /api/pmode", s.withAdmin(s.handleGetPMode))
	mux.HandleFunc("PUT /api/pmode", s.withAdmin(s.handlePutPMode))
	mux.HandleFunc("POST /api/pmode/refresh", s.withAdmin(s.handleRefreshPMode))
	mux.HandleFunc("POST /api/pmode/resolve", s.withAdmin(s.handleResolve))
	mux.HandleFunc("GET /api/mpcs/{name}", s.withAdmin(s.handleGetMpc))

	mux.HandleFunc("GET /api/messages", s.withAdmin(s.handleListMessages))
	mux.HandleFunc("GET /api/messages/{messageID}/status", s.withAdmin(s.handleGetStatus))
	mux.HandleFunc("PUT /api/messages/{messageID}/status", s.withAdmin(s.handleSetStatus))

	mux.HandleFunc("POST /api/pull", s.withAdmin(s.handlePull))
}

// Middleware

func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check for admin API key in header
		apiKey := r.Header.Get("X-Admin-Key")
		if apiKey == "" || apiKey != s.config.Server.AdminKey {
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.jsonError(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	_, err := s.deps.PModes.Configuration(r.Context())
	s.jsonResponse(w, map[string]any{"status": "ready", "pmodeLoaded": err == nil}, http.StatusOK)
}

// PMode handlers

type pmodeSummary struct {
	Party       string       `json:"party"`
	Parties     []string     `json:"parties"`
	Processes   []string     `json:"processes"`
	Legs        []string     `json:"legs"`
	Mpcs        []string     `json:"mpcs"`
	PullTargets []pullTarget `json:"pullTargets"`
}

type pullTarget struct {
	PModeKey string `json:"pmodeKey"`
	Mpc      string `json:"mpc"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleGetPMode(w http.ResponseWriter, r *http.Request) {
	resolver, err := s.deps.PModes.Resolver(r.Context())
	if err != nil {
		s.pmodeError(w, err)
		return
	}
	cfg := resolver.Configuration()
	summary := pmodeSummary{
		Mpcs:        resolver.Mpcs(),
		Parties:     []string{},
		Processes:   []string{},
		Legs:        []string{},
		PullTargets: []pullTarget{},
	}
	if cfg.Party != nil {
		summary.Party = cfg.Party.Name
	}
	for _, p := range cfg.Parties {
		summary.Parties = append(summary.Parties, p.Name)
	}
	for _, p := range cfg.Processes {
		summary.Processes = append(summary.Processes, p.Name)
	}
	for _, l := range cfg.Legs {
		summary.Legs = append(summary.Legs, l.Name)
	}
	for _, t := range resolver.PullTargets() {
		summary.PullTargets = append(summary.PullTargets, pullTarget{PModeKey: t.Key.String(), Mpc: t.Mpc, Endpoint: t.Endpoint})
	}
	s.jsonResponse(w, summary, http.StatusOK)
}

func (s *Server) handlePutPMode(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		s.jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := s.deps.PModes.Replace(r.Context(), raw); err != nil {
		var verr *pmode.ValidationError
		if errors.As(err, &verr) {
			s.jsonResponse(w, map[string]any{"error": "invalid pmode document", "issues": verr.Issues}, http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to replace pmode configuration", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "replaced"}, http.StatusOK)
}

func (s *Server) handleRefreshPMode(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.PModes.Refresh(r.Context()); err != nil {
		s.pmodeError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "refreshed"}, http.StatusOK)
}

type resolveRequest struct {
	From           []pmode.Identifier `json:"from"`
	To             []pmode.Identifier `json:"to"`
	ServiceValue   string             `json:"service"`
	ServiceType    string             `json:"serviceType"`
	Action         string             `json:"action"`
	AgreementValue string             `json:"agreement"`
	AgreementType  string             `json:"agreementType"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resolver, err := s.deps.PModes.Resolver(r.Context())
	if err != nil {
		s.pmodeError(w, err)
		return
	}

	key, err := resolver.FindPModeKey(pmode.MessageHeader(req))
	if err != nil {
		var re *pmode.ResolutionError
		if errors.As(err, &re) {
			s.jsonResponse(w, map[string]string{
				"error":     re.Kind.String(),
				"errorCode": re.Code().Code,
				"detail":    re.Detail,
			}, http.StatusUnprocessableEntity)
			return
		}
		s.pmodeError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"pmodeKey": key.String()}, http.StatusOK)
}

func (s *Server) handleGetMpc(w http.ResponseWriter, r *http.Request) {
	resolver, err := s.deps.PModes.Resolver(r.Context())
	if err != nil {
		s.pmodeError(w, err)
		return
	}
	name := r.PathValue("name")
	if !resolver.IsKnownMpc(name) {
		s.jsonError(w, "mpc not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, map[string]any{
		"name":                  name,
		"retentionDownloaded":   resolver.RetentionDownloaded(name),
		"retentionUndownloaded": resolver.RetentionUndownloaded(name),
	}, http.StatusOK)
}

func (s *Server) pmodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, pmode.ErrConfigurationMissing) {
		s.jsonError(w, "no pmode configuration uploaded", http.StatusNotFound)
		return
	}
	s.logger.Error("pmode configuration unavailable", "error", err)
	s.jsonError(w, "internal error", http.StatusInternalServerError)
}

// Pull handlers

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil || s.deps.Trigger == nil {
		s.jsonError(w, "pulling is disabled", http.StatusConflict)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		s.jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if len(body) == 0 {
		n, err := s.deps.Trigger.Trigger(r.Context())
		if err != nil {
			s.logger.Error("failed to trigger pull", "error", err)
			s.jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]int{"enqueued": n}, http.StatusAccepted)
		return
	}

	var item pull.WorkItem
	if err := json.Unmarshal(body, &item); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if item.Mpc == "" || item.PModeKey == "" {
		s.jsonError(w, "mpc and pmodeKey are required", http.StatusBadRequest)
		return
	}
	if _, err := pmode.ParseKey(item.PModeKey); err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.deps.Queue.Enqueue(r.Context(), item); err != nil {
		s.jsonError(w, "pull queue unavailable", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]int{"enqueued": 1}, http.StatusAccepted)
}

// Message log handlers

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("kind") {
	case "", "user":
		listMessages(s, s.deps.UserLogs, w, r)
	case "signal":
		listMessages(s, s.deps.SignalLogs, w, r)
	default:
		s.jsonError(w, "kind must be user or signal", http.StatusBadRequest)
	}
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("kind") {
	case "", "user":
		getStatus(s, s.deps.UserLogs, w, r)
	case "signal":
		getStatus(s, s.deps.SignalLogs, w, r)
	default:
		s.jsonError(w, "kind must be user or signal", http.StatusBadRequest)
	}
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("kind") {
	case "", "user":
		setStatus(s, s.deps.UserLogs, w, r)
	case "signal":
		setStatus(s, s.deps.SignalLogs, w, r)
	default:
		s.jsonError(w, "kind must be user or signal", http.StatusBadRequest)
	}
}

type messagePage[R messagelog.Record] struct {
	Total    int64 `json:"total"`
	Offset   int   `json:"offset"`
	Limit    int   `json:"limit"`
	Messages []R   `json:"messages"`
}

func listMessages[R messagelog.Record](s *Server, t *messagelog.Tracker[R], w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	ascending, _ := strconv.ParseBool(q.Get("asc"))

	filters, err := parseFilters(q)
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := t.FindPaged(r.Context(), offset, limit, q.Get("sort"), ascending, filters)
	if err != nil {
		s.messageLogError(w, err)
		return
	}
	total, err := t.Count(r.Context(), filters)
	if err != nil {
		s.messageLogError(w, err)
		return
	}
	s.jsonResponse(w, messagePage[R]{Total: total, Offset: offset, Limit: limit, Messages: records}, http.StatusOK)
}

func getStatus[R messagelog.Record](s *Server, t *messagelog.Tracker[R], w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageID")
	status, err := t.Status(r.Context(), messageID)
	if err != nil {
		s.messageLogError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"messageId": messageID, "status": string(status)}, http.StatusOK)
}

func setStatus[R messagelog.Record](s *Server, t *messagelog.Tracker[R], w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status := messagelog.Status(req.Status)
	if !status.Settable() {
		s.jsonError(w, "status cannot be set: "+req.Status, http.StatusBadRequest)
		return
	}

	messageID := r.PathValue("messageID")
	if status == messagelog.BeingPulled {
		err := t.SetIntermediaryPullStatus(r.Context(), messageID)
		if err != nil {
			s.messageLogError(w, err)
			return
		}
	} else if err := t.SetStatus(r.Context(), messageID, status); err != nil {
		s.messageLogError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"messageId": messageID, "status": string(status)}, http.StatusOK)
}

// parseFilters turns query parameters into tracker filters. Status and role
// match exactly, timestamps bound the received time and the remaining fields
// accept LIKE patterns.
func parseFilters(q map[string][]string) (map[string]any, error) {
	filters := map[string]any{}
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	for _, field := range []string{"messageId", "mpc", "backend", "endpoint", "refToMessageId"} {
		if v := get(field); v != "" {
			filters[field] = v
		}
	}
	if v := get("status"); v != "" {
		status, err := messagelog.ParseStatus(v)
		if err != nil {
			return nil, err
		}
		filters["messageStatus"] = status
	}
	if v := get("mshRole"); v != "" {
		filters["mshRole"] = ebms.Role(v)
	}
	for _, field := range []string{messagelog.ReceivedFrom, messagelog.ReceivedTo} {
		if v := get(field); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, errors.New(field + " must be an RFC 3339 timestamp")
			}
			filters[field] = t
		}
	}
	return filters, nil
}

func (s *Server) messageLogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messagelog.ErrMessageNotFound):
		s.jsonError(w, "message not found", http.StatusNotFound)
	case errors.Is(err, messagelog.ErrUnknownField):
		s.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("message log operation failed", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// Helpers

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}
