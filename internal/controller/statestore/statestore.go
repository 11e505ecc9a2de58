// Package statestore implements the controller's in-memory
// ContainerStateRepository: a reader-writer-locked map of host/project
// inventory pushes, following the teacher's RWMutex-guarded map shape
// (internal/events/bus.go's subscriber map, internal/engine's per-name
// locking) rather than the original's Rust equivalent since no part of
// this index is ever persisted.
package statestore

import (
	"sort"
	"sync"
	"time"

	"github.com/hoisterhq/hoister/internal/controller/domain"
)

// Store holds the latest inventory push per (host, project) pair. Each push
// replaces the entire service map for that pair; pushes never merge.
type Store struct {
	mu    sync.RWMutex
	state map[string]map[string]domain.HostProjectState // host -> project -> state
}

// New builds an empty Store.
func New() *Store {
	return &Store{state: make(map[string]map[string]domain.HostProjectState)}
}

// AddContainerState replaces the service map for (host, project) and stamps
// last_updated to now.
func (s *Store) AddContainerState(host, project string, services map[string]domain.Inspection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state[host] == nil {
		s.state[host] = make(map[string]domain.HostProjectState)
	}
	s.state[host][project] = domain.HostProjectState{
		HostName:    host,
		ProjectName: project,
		Services:    services,
		LastUpdated: time.Now(),
	}
}

// GetOne returns the inspection for one service within (host, project), or
// false if no matching entry exists.
func (s *Store) GetOne(host, project, service string) (domain.FlatContainerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects, ok := s.state[host]
	if !ok {
		return domain.FlatContainerState{}, false
	}
	ps, ok := projects[project]
	if !ok {
		return domain.FlatContainerState{}, false
	}
	insp, ok := ps.Services[service]
	if !ok {
		return domain.FlatContainerState{}, false
	}
	return domain.FlatContainerState{
		HostName:    host,
		ProjectName: project,
		ServiceName: service,
		Inspection:  insp,
		LastUpdated: ps.LastUpdated,
	}, true
}

// GetAll returns a flattened, host-sorted snapshot of every known service
// across every host/project pair.
func (s *Store) GetAll() []domain.FlatContainerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FlatContainerState
	for host, projects := range s.state {
		for project, ps := range projects {
			for service, insp := range ps.Services {
				out = append(out, domain.FlatContainerState{
					HostName:    host,
					ProjectName: project,
					ServiceName: service,
					Inspection:  insp,
					LastUpdated: ps.LastUpdated,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HostName != out[j].HostName {
			return out[i].HostName < out[j].HostName
		}
		if out[i].ProjectName != out[j].ProjectName {
			return out[i].ProjectName < out[j].ProjectName
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	return out
}
