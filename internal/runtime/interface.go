package runtime

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/api/types/volume"
)

// PullOutcome classifies what an image pull actually did, per the
// "Download complete" / "Pull complete" / "Downloaded newer image for"
// marker rule: any of those in the stream means a newer layer was pulled,
// anything else (stream ends quietly, "Image is up to date") means not.
type PullOutcome int

const (
	PullNoUpdate PullOutcome = iota
	PullNewerLayer
)

// ContainerRuntime is the capability surface the update engine and volume
// snapshotter depend on. The moby-backed Client is the shipped
// implementation; tests use an in-memory fake satisfying the same
// interface, keeping the state machine hermetic.
type ContainerRuntime interface {
	ListManaged(ctx context.Context, projectFilter string, allProjects bool) ([]container.Summary, error)
	Inspect(ctx context.Context, id string) (container.InspectResponse, error)
	Stop(ctx context.Context, id string, timeoutSeconds int) error
	Rename(ctx context.Context, id, newName string) error
	Remove(ctx context.Context, id string, withVolumes bool) error
	Create(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error)
	Start(ctx context.Context, id string) error

	Pull(ctx context.Context, imageRef string, auth string) (PullOutcome, error)
	ImageDigest(ctx context.Context, imageRef string) (string, error)
	RemoveImage(ctx context.Context, idOrRef string) error

	VolumeCreate(ctx context.Context, name string) error
	VolumeRemove(ctx context.Context, name string, force bool) error
	Exec(ctx context.Context, containerID string, cmd []string, timeoutSeconds int) (exitCode int, output string, err error)

	SelfContainerized() bool
}

var _ ContainerRuntime = (*Client)(nil)
