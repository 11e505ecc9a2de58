// Package domain holds the entities shared by the controller's repository
// and service layers: projects, services, deployments, and container state.
package domain

import "time"

// Status is the closed set of terminal (and pending) outcomes a deployment
// attempt can reach. Stored as a small integer so the schema's CHECK
// constraint and row ordering stay stable across versions.
type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusSuccess
	StatusRollbackFinished
	StatusNoUpdate
	StatusFailed
	StatusTestMessage
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusStarted:
		return "Started"
	case StatusSuccess:
		return "Success"
	case StatusRollbackFinished:
		return "RollbackFinished"
	case StatusNoUpdate:
		return "NoUpdate"
	case StatusFailed:
		return "Failed"
	case StatusTestMessage:
		return "TestMessage"
	default:
		return "Unknown"
	}
}

// ParseStatus converts a status name back into its enum value. Used when
// decoding a CreateDeployment request body.
func ParseStatus(s string) (Status, bool) {
	for st := StatusPending; st <= StatusTestMessage; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StatusPending, false
}

// Project is a logical compose project an agent manages on some host.
type Project struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Service is a single managed container's identity within a project.
type Service struct {
	ID        int64     `db:"id" json:"id"`
	ProjectID int64     `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`
	Image     string    `db:"image" json:"image"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Deployment is one append-only row in the deployment history log.
type Deployment struct {
	ID          int64     `db:"id" json:"id"`
	ProjectName string    `db:"project_name" json:"project_name"`
	ServiceName string    `db:"service_name" json:"service_name"`
	Image       string    `db:"image" json:"image"`
	Digest      string    `db:"digest" json:"digest"`
	Status      Status    `db:"status" json:"status"`
	ServiceID   int64     `db:"service_id" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreateDeploymentRequest is the body accepted by POST /deployments.
type CreateDeploymentRequest struct {
	ProjectName string `json:"project_name"`
	ServiceName string `json:"service_name"`
	Image       string `json:"image"`
	Digest      string `json:"digest"`
	Status      string `json:"status"`
}

// Inspection is the (redacted) container inspection payload an agent pushes
// as part of its inventory. Field set is deliberately small: only what the
// controller's state index and HTTP clients need, not the full runtime
// inspection structure.
type Inspection struct {
	ContainerID string            `json:"container_id"`
	Image       string            `json:"image"`
	Digest      string            `json:"digest"`
	State       string            `json:"state"`
	Running     bool              `json:"running"`
	Health      string            `json:"health,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ContainerStatePush is the body accepted by
// POST /container/state/{host}/{project}.
type ContainerStatePush struct {
	ProjectName string                `json:"project_name"`
	Payload     map[string]Inspection `json:"payload"`
}

// HostProjectState is one entry of the in-memory state index: all services
// known for a given (host, project) pair as of the last inventory push.
type HostProjectState struct {
	HostName    string                `json:"host_name"`
	ProjectName string                `json:"project_name"`
	Services    map[string]Inspection `json:"services"`
	LastUpdated time.Time             `json:"last_updated"`
}

// FlatContainerState is one row of the flattened GET /container/state
// listing: a single service's inspection plus its host/project/last_updated
// context.
type FlatContainerState struct {
	HostName    string     `json:"host_name"`
	ProjectName string     `json:"project_name"`
	ServiceName string     `json:"service_name"`
	Inspection  Inspection `json:"inspection"`
	LastUpdated time.Time  `json:"last_updated"`
}

// ControllerEventType names the variants of ControllerEvent. Today only
// Retry exists; the type tag keeps the wire format extensible without
// breaking agents that only understand a subset.
type ControllerEventType string

const ControllerEventRetry ControllerEventType = "retry"

// ControllerEvent is broadcast to every agent subscribed to GET /sse.
type ControllerEvent struct {
	Type        ControllerEventType `json:"type"`
	ProjectName string              `json:"project_name,omitempty"`
	ContainerID string              `json:"container_id,omitempty"`
}

// Envelope is the `{success, data}` wrapper every non-SSE, non-health API
// response uses.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}
