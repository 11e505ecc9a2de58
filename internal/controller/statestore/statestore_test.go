package statestore

import (
	"testing"

	"github.com/hoisterhq/hoister/internal/controller/domain"
)

func TestAddContainerStateReplacesNotMerges(t *testing.T) {
	s := New()
	s.AddContainerState("host1", "blog", map[string]domain.Inspection{
		"web": {ContainerID: "c1", Running: true},
		"db":  {ContainerID: "c2", Running: true},
	})
	s.AddContainerState("host1", "blog", map[string]domain.Inspection{
		"web": {ContainerID: "c1-new", Running: true},
	})

	if _, ok := s.GetOne("host1", "blog", "db"); ok {
		t.Error("expected db to be gone after replacing push omitted it")
	}
	got, ok := s.GetOne("host1", "blog", "web")
	if !ok {
		t.Fatal("expected web to be present")
	}
	if got.Inspection.ContainerID != "c1-new" {
		t.Errorf("ContainerID = %q, want c1-new", got.Inspection.ContainerID)
	}
}

func TestGetAllSortedByHost(t *testing.T) {
	s := New()
	s.AddContainerState("zeta", "p", map[string]domain.Inspection{"svc": {}})
	s.AddContainerState("alpha", "p", map[string]domain.Inspection{"svc": {}})

	all := s.GetAll()
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	if all[0].HostName != "alpha" || all[1].HostName != "zeta" {
		t.Errorf("unexpected order: %q, %q", all[0].HostName, all[1].HostName)
	}
}

func TestGetOneMissingReturnsFalse(t *testing.T) {
	s := New()
	if _, ok := s.GetOne("nohost", "noproj", "nosvc"); ok {
		t.Error("expected GetOne to report false for unknown host")
	}
}
