// Package httpapi implements the controller's HTTP surface: bearer auth,
// the deployments/container-state REST routes, and the SSE event stream,
// grounded on the teacher's http.ServeMux method+path routing
// (internal/web/server.go) and writeJSON/writeError response helpers, with
// the session/CSRF/passkey machinery dropped since this controller has no
// browser-facing login.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/metrics"
)

// DeploymentsRepository is the subset of sqlstore.Store the HTTP layer
// needs, kept narrow so handlers can be tested against a fake.
type DeploymentsRepository interface {
	CreateDeployment(ctx context.Context, req domain.CreateDeploymentRequest) (int64, error)
	GetDeployment(ctx context.Context, id int64) (domain.Deployment, error)
	GetAllDeployments(ctx context.Context) ([]domain.Deployment, error)
	GetDeploymentsOfService(ctx context.Context, project, service string) ([]domain.Deployment, error)
}

// ContainerStateRepository is the subset of statestore.Store the HTTP layer
// needs.
type ContainerStateRepository interface {
	AddContainerState(host, project string, services map[string]domain.Inspection)
	GetOne(host, project, service string) (domain.FlatContainerState, bool)
	GetAll() []domain.FlatContainerState
}

// Server wires the repositories and broadcaster into a routed http.Handler.
type Server struct {
	deployments DeploymentsRepository
	state       ContainerStateRepository
	events      *Broadcaster
	log         *logging.Logger
	mux         *http.ServeMux
}

// New builds a Server with all routes registered. Call Handler with the
// configured api_secret to wrap it in bearer auth before serving.
func New(deployments DeploymentsRepository, state ContainerStateRepository, events *Broadcaster, log *logging.Logger) *Server {
	s := &Server{deployments: deployments, state: state, events: events, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /sse", s.events.ServeHTTP)
	s.mux.HandleFunc("GET /deployments", s.handleGetAllDeployments)
	s.mux.HandleFunc("POST /deployments", s.handleCreateDeployment)
	s.mux.HandleFunc("GET /deployments/{project}/{service}", s.handleGetDeploymentsOfService)
	s.mux.HandleFunc("POST /container/state/{host}/{project}", s.handlePushContainerState)
	s.mux.HandleFunc("GET /container/state", s.handleGetAllContainerState)
	s.mux.HandleFunc("GET /container/state/{host}/{project}/{service}", s.handleGetOneContainerState)
}

// Handler returns the fully wired http.Handler, with bearer auth and
// per-route metrics applied around the mux.
func (s *Server) Handler(apiSecret string) http.Handler {
	return bearerAuth(apiSecret, instrument(s.mux))
}

// instrument wraps every request with HTTPRequestsTotal/HTTPRequestDuration,
// keyed by the matched route pattern rather than the raw path so templated
// segments like {project} don't explode cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleGetAllDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.deployments.GetAllDeployments(r.Context())
	if err != nil {
		s.log.Error("get all deployments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deployments")
		return
	}
	writeJSON(w, http.StatusOK, domain.Envelope{Success: true, Data: deployments})
}

func (s *Server) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.deployments.CreateDeployment(r.Context(), req)
	if err != nil {
		s.log.Error("create deployment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record deployment")
		return
	}

	d, err := s.deployments.GetDeployment(r.Context(), id)
	if err != nil {
		s.log.Error("read back created deployment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read back deployment")
		return
	}
	writeJSON(w, http.StatusCreated, domain.Envelope{Success: true, Data: d})
}

func (s *Server) handleGetDeploymentsOfService(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	service := r.PathValue("service")

	deployments, err := s.deployments.GetDeploymentsOfService(r.Context(), project, service)
	if err != nil {
		// missing project/service maps to an empty list, not an error, per spec §6.
		writeJSON(w, http.StatusOK, domain.Envelope{Success: true, Data: []domain.Deployment{}})
		return
	}
	writeJSON(w, http.StatusOK, domain.Envelope{Success: true, Data: deployments})
}

func (s *Server) handlePushContainerState(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	project := r.PathValue("project")

	var push domain.ContainerStatePush
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.state.AddContainerState(host, project, push.Payload)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetAllContainerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Envelope{Success: true, Data: s.state.GetAll()})
}

func (s *Server) handleGetOneContainerState(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	project := r.PathValue("project")
	service := r.PathValue("service")

	entry, ok := s.state.GetOne(host, project, service)
	if !ok {
		writeError(w, http.StatusNotFound, "no state for that host/project/service")
		return
	}
	writeJSON(w, http.StatusOK, domain.Envelope{Success: true, Data: entry})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
