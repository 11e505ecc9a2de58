// Package snapshot implements point-in-time volume copy/restore for the
// update engine's optional backup-volumes path, using a throwaway helper
// container that bind-mounts source and destination and runs `cp -a`. The
// exec-based helper-container pattern is grounded on the teacher's
// ExecContainer, repurposed here to drive a copy instead of a healthcheck
// probe.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"

	"github.com/hoisterhq/hoister/internal/runtime"
)

// helperImageFallback is the well-known minimal image used when the agent
// itself is not running inside a container (SPEC_FULL.md §4.11).
const helperImageFallback = "alpine:3.20"

// execTimeoutSeconds bounds the helper container's copy operation.
const execTimeoutSeconds = 120

// ErrSnapshot wraps a non-zero helper-container exit, matching the spec's
// SnapshotError error kind.
type ErrSnapshot struct {
	Volume string
	Output string
	Code   int
}

func (e *ErrSnapshot) Error() string {
	return fmt.Sprintf("snapshot helper for volume %q exited %d: %s", e.Volume, e.Code, e.Output)
}

// Snapshotter creates and restores volume backups via a helper container.
type Snapshotter struct {
	rt rt
}

// rt is the narrow slice of runtime.ContainerRuntime the snapshotter needs.
type rt interface {
	Create(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeoutSeconds int) error
	Remove(ctx context.Context, id string, withVolumes bool) error
	Exec(ctx context.Context, containerID string, cmd []string, timeoutSeconds int) (int, string, error)
	VolumeCreate(ctx context.Context, name string) error
	VolumeRemove(ctx context.Context, name string, force bool) error
	SelfContainerized() bool
}

// New builds a Snapshotter over the given runtime.
func New(r runtime.ContainerRuntime) *Snapshotter {
	return &Snapshotter{rt: r}
}

// NamedVolumeMount is a single volume-typed mount eligible for snapshotting.
// Bind mounts and tmpfs are filtered out before this type is constructed
// (original_source's mount.Type == "volume" rule).
type NamedVolumeMount struct {
	VolumeName  string
	Destination string
}

// EligibleMounts filters a container's full mount list down to named
// (non-bind, non-tmpfs) volumes.
func EligibleMounts(mounts []container.MountPoint) []NamedVolumeMount {
	var out []NamedVolumeMount
	for _, m := range mounts {
		if m.Type == mount.TypeVolume && m.Name != "" {
			out = append(out, NamedVolumeMount{VolumeName: m.Name, Destination: m.Destination})
		}
	}
	return out
}

// SnapshotName is the backup volume name for an original volume at a given
// unix-second timestamp: "<original>-backup-<unix_seconds>".
func SnapshotName(original string, unixSeconds int64) string {
	return fmt.Sprintf("%s-backup-%d", original, unixSeconds)
}

func (s *Snapshotter) helperImage() string {
	if s.rt.SelfContainerized() {
		return selfImage()
	}
	return helperImageFallback
}

// selfImageFn resolves the agent's own image via the HOISTER_AGENT_IMAGE env
// var set by the container's own entrypoint, since the runtime API has no
// direct "what image am I" self-query; with the variable unset it returns
// helperImageFallback. It is a variable so tests can replace it.
var selfImageFn = func() string {
	if img := os.Getenv("HOISTER_AGENT_IMAGE"); img != "" {
		return img
	}
	return helperImageFallback
}

func selfImage() string { return selfImageFn() }

// copy runs a helper container that bind-mounts src read-only at /source
// and dst read-write at /dest, and executes `cp -a /source/. /dest/`.
func (s *Snapshotter) copy(ctx context.Context, srcVolume, dstVolume string) error {
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeVolume, Source: srcVolume, Target: "/source", ReadOnly: true},
			{Type: mount.TypeVolume, Source: dstVolume, Target: "/dest"},
		},
	}
	cfg := &container.Config{
		Image:      s.helperImage(),
		Entrypoint: []string{"sleep"},
		Cmd:        []string{"300"},
		Labels:     map[string]string{"hoister.snapshot-helper": "true"},
	}
	name := fmt.Sprintf("hoister-snapshot-%s-%d", srcVolume, time.Now().UnixNano())
	id, err := s.rt.Create(ctx, name, cfg, hostCfg, nil)
	if err != nil {
		return fmt.Errorf("create snapshot helper: %w", err)
	}
	defer func() {
		_ = s.rt.Stop(ctx, id, 5)
		_ = s.rt.Remove(ctx, id, false)
	}()

	if err := s.rt.Start(ctx, id); err != nil {
		return fmt.Errorf("start snapshot helper: %w", err)
	}

	code, output, err := s.rt.Exec(ctx, id, []string{"cp", "-a", "/source/.", "/dest/"}, execTimeoutSeconds)
	if err != nil {
		return fmt.Errorf("exec snapshot copy: %w", err)
	}
	if code != 0 {
		return &ErrSnapshot{Volume: srcVolume, Output: output, Code: code}
	}
	return nil
}

// Create makes a fresh backup volume for each eligible mount and copies its
// contents, returning the list of backup volume names created so far (so
// the caller can clean up partial progress on failure).
func (s *Snapshotter) Create(ctx context.Context, mounts []NamedVolumeMount, unixSeconds int64) (map[string]string, error) {
	created := make(map[string]string, len(mounts)) // original volume -> backup volume
	for _, m := range mounts {
		backup := SnapshotName(m.VolumeName, unixSeconds)
		if err := s.rt.VolumeCreate(ctx, backup); err != nil {
			return created, fmt.Errorf("create backup volume %s: %w", backup, err)
		}
		created[m.VolumeName] = backup
		if err := s.copy(ctx, m.VolumeName, backup); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Discard deletes backup volumes after a successful update.
func (s *Snapshotter) Discard(ctx context.Context, backups map[string]string) {
	for _, backup := range backups {
		_ = s.rt.VolumeRemove(ctx, backup, true)
	}
}

// Restore recreates each original volume fresh and copies the matching
// backup's contents into it, deleting the backup afterward. The original is
// removed and recreated rather than copied onto in place so a file the
// unhealthy candidate wrote but the snapshot never saw does not survive the
// restore.
func (s *Snapshotter) Restore(ctx context.Context, backups map[string]string) error {
	for original, backup := range backups {
		if err := s.rt.VolumeRemove(ctx, original, true); err != nil {
			return fmt.Errorf("remove volume %s before restore: %w", original, err)
		}
		if err := s.rt.VolumeCreate(ctx, original); err != nil {
			return fmt.Errorf("recreate volume %s: %w", original, err)
		}
		if err := s.copy(ctx, backup, original); err != nil {
			return fmt.Errorf("restore volume %s: %w", original, err)
		}
		_ = s.rt.VolumeRemove(ctx, backup, true)
	}
	return nil
}
