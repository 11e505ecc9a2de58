package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/hoisterhq/hoister/internal/controller/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/hoister.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetDeployment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateDeployment(ctx, domain.CreateDeploymentRequest{
		ProjectName: "blog", ServiceName: "web", Image: "ghcr.io/acme/web:1", Digest: "sha256:aaa", Status: "Success",
	})
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	d, err := s.GetDeployment(ctx, id)
	if err != nil {
		t.Fatalf("GetDeployment: %v", err)
	}
	if d.ProjectName != "blog" || d.ServiceName != "web" || d.Status != domain.StatusSuccess {
		t.Errorf("unexpected deployment: %+v", d)
	}
}

func TestCreateDeploymentCollapsesNoUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	req := domain.CreateDeploymentRequest{ProjectName: "p", ServiceName: "s", Image: "img:1", Digest: "d1", Status: "NoUpdate"}
	if _, err := s.CreateDeployment(ctx, req); err != nil {
		t.Fatalf("first CreateDeployment: %v", err)
	}
	if _, err := s.CreateDeployment(ctx, req); err != nil {
		t.Fatalf("second CreateDeployment: %v", err)
	}

	rows, err := s.GetDeploymentsOfService(ctx, "p", "s")
	if err != nil {
		t.Fatalf("GetDeploymentsOfService: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected NoUpdate rows to collapse to 1, got %d", len(rows))
	}
}

func TestGetDeploymentsOfServiceNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetDeploymentsOfService(context.Background(), "missing", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAllDeploymentsCapsAtFifty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 55; i++ {
		_, err := s.CreateDeployment(ctx, domain.CreateDeploymentRequest{
			ProjectName: "p", ServiceName: "s", Image: "img:1", Digest: "d", Status: "Success",
		})
		if err != nil {
			t.Fatalf("CreateDeployment #%d: %v", i, err)
		}
	}
	rows, err := s.GetAllDeployments(ctx)
	if err != nil {
		t.Fatalf("GetAllDeployments: %v", err)
	}
	if len(rows) != recentRowCap {
		t.Errorf("len(rows) = %d, want %d", len(rows), recentRowCap)
	}
}

