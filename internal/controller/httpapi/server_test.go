package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
)

type fakeDeployments struct {
	created []domain.CreateDeploymentRequest
	byID    map[int64]domain.Deployment
	nextID  int64
}

func newFakeDeployments() *fakeDeployments {
	return &fakeDeployments{byID: map[int64]domain.Deployment{}}
}

func (f *fakeDeployments) CreateDeployment(ctx context.Context, req domain.CreateDeploymentRequest) (int64, error) {
	f.nextID++
	status, _ := domain.ParseStatus(req.Status)
	f.byID[f.nextID] = domain.Deployment{
		ID: f.nextID, ProjectName: req.ProjectName, ServiceName: req.ServiceName,
		Image: req.Image, Digest: req.Digest, Status: status,
	}
	f.created = append(f.created, req)
	return f.nextID, nil
}

func (f *fakeDeployments) GetDeployment(ctx context.Context, id int64) (domain.Deployment, error) {
	d, ok := f.byID[id]
	if !ok {
		return domain.Deployment{}, errNotFound
	}
	return d, nil
}

func (f *fakeDeployments) GetAllDeployments(ctx context.Context) ([]domain.Deployment, error) {
	var out []domain.Deployment
	for _, d := range f.byID {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDeployments) GetDeploymentsOfService(ctx context.Context, project, service string) ([]domain.Deployment, error) {
	return nil, errNotFound
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }

type fakeState struct {
	pushed map[string]map[string]domain.Inspection
}

func newFakeState() *fakeState {
	return &fakeState{pushed: map[string]map[string]domain.Inspection{}}
}

func (f *fakeState) AddContainerState(host, project string, services map[string]domain.Inspection) {
	f.pushed[host+"/"+project] = services
}

func (f *fakeState) GetOne(host, project, service string) (domain.FlatContainerState, bool) {
	svcs, ok := f.pushed[host+"/"+project]
	if !ok {
		return domain.FlatContainerState{}, false
	}
	insp, ok := svcs[service]
	if !ok {
		return domain.FlatContainerState{}, false
	}
	return domain.FlatContainerState{HostName: host, ProjectName: project, ServiceName: service, Inspection: insp}, true
}

func (f *fakeState) GetAll() []domain.FlatContainerState { return nil }

func newTestServer() (*Server, *fakeDeployments, *fakeState) {
	deployments := newFakeDeployments()
	state := newFakeState()
	log := logging.New(false)
	srv := New(deployments, state, NewBroadcaster(log), log)
	return srv, deployments, state
}

func TestHealthNeverRequiresAuth(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler("s3cr3t").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOtherRoutesRequireBearerToken(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	rec := httptest.NewRecorder()
	srv.Handler("s3cr3t").ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	req2.Header.Set("Authorization", "Bearer s3cr3t")
	rec2 := httptest.NewRecorder()
	srv.Handler("s3cr3t").ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec2.Code)
	}
}

func TestAuthDisabledWhenSecretEmpty(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateDeploymentRoundTrips(t *testing.T) {
	srv, fake, _ := newTestServer()
	body, _ := json.Marshal(domain.CreateDeploymentRequest{ProjectName: "p", ServiceName: "s", Image: "img:1", Digest: "d", Status: "Success"})
	req := httptest.NewRequest(http.MethodPost, "/deployments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one created deployment, got %d", len(fake.created))
	}
	var env struct {
		Success bool              `json:"success"`
		Data    domain.Deployment `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Data.ProjectName != "p" || env.Data.ServiceName != "s" || env.Data.Image != "img:1" || env.Data.Digest != "d" || env.Data.Status != domain.StatusSuccess {
		t.Errorf("response deployment = %+v, want the posted fields", env.Data)
	}
}

func TestGetDeploymentsOfServiceMissingReturnsEmptyList(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/deployments/missing/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var env domain.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data, ok := env.Data.([]any)
	if !ok || len(data) != 0 {
		t.Errorf("expected empty data list, got %#v", env.Data)
	}
}

func TestContainerStatePushAndGetOne(t *testing.T) {
	srv, _, state := newTestServer()
	push := domain.ContainerStatePush{
		ProjectName: "blog",
		Payload:     map[string]domain.Inspection{"web": {ContainerID: "abc123", Running: true}},
	}
	body, _ := json.Marshal(push)
	req := httptest.NewRequest(http.MethodPost, "/container/state/host1/blog", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("push status = %d, want 200", rec.Code)
	}
	if _, ok := state.pushed["host1/blog"]; !ok {
		t.Fatal("expected state to be pushed")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/container/state/host1/blog/web", nil)
	rec2 := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec2.Code)
	}
}

func TestContainerStateGetOneMissingReturns404(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/container/state/nohost/noproj/nosvc", nil)
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
