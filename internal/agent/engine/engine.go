// Package engine implements the per-container update state machine
// (Inspect -> ResolveService -> Pull -> SnapshotVolumes? -> StopOld ->
// RenameOldToBackup -> CreateCandidate -> StartCandidate -> HealthGate ->
// CommitSuccess | Rollback), grounded on the teacher's UpdateContainer but
// reworked around rename-based rollback instead of recreate-from-snapshot,
// since that is the mechanism the specification requires.
package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"

	"github.com/hoisterhq/hoister/internal/agent/resolver"
	"github.com/hoisterhq/hoister/internal/agent/snapshot"
	"github.com/hoisterhq/hoister/internal/clock"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/metrics"
	"github.com/hoisterhq/hoister/internal/runtime"
)

// Outcome is the terminal result of one update() call, matching the
// closed set of deployment statuses the spec names for this path.
type Outcome string

const (
	OutcomeSuccess          Outcome = "Success"
	OutcomeNoUpdate         Outcome = "NoUpdate"
	OutcomeFailed           Outcome = "Failed"
	OutcomeRollbackFinished Outcome = "RollbackFinished"
)

// Result is returned by Update and handed to the deployment reporter.
type Result struct {
	ProjectName string
	ServiceName string
	ContainerID string
	Image       string
	Digest      string
	Outcome     Outcome
	Err         error
}

const (
	stopGraceSeconds  = 30
	healthGateDelay   = 5 * time.Second
	labelEnable       = "hoister.enable"
	labelIdentifier   = "hoister.identifier"
	labelHide         = "hoister.hide"
	labelBackupVolume = "hoister.backup-volumes"
	labelComposeProj  = "com.docker.compose.project"
	labelComposeSvc   = "com.docker.compose.service"
)

// ErrUpdateInProgress is returned when an update is already running for the
// given container name.
var ErrUpdateInProgress = errors.New("update already in progress")

// Engine runs the update state machine for one container at a time per
// name (the "single in-flight update per container ID" invariant).
type Engine struct {
	rt       runtime.ContainerRuntime
	resolver *resolver.Resolver
	snap     *snapshot.Snapshotter
	clk      clock.Clock
	log      *logging.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New builds an Engine.
func New(rt runtime.ContainerRuntime, res *resolver.Resolver, snap *snapshot.Snapshotter, clk clock.Clock, log *logging.Logger) *Engine {
	return &Engine{
		rt:       rt,
		resolver: res,
		snap:     snap,
		clk:      clk,
		log:      log,
		running:  make(map[string]bool),
	}
}

func (e *Engine) tryLock(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[name] {
		return false
	}
	e.running[name] = true
	return true
}

func (e *Engine) unlock(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, name)
}

// IsEnabled reports whether a container carries the hoister.enable=true
// label the agent requires before touching it.
func IsEnabled(labels map[string]string) bool {
	return labels[labelEnable] == "true"
}

// IsHidden reports whether a container should be excluded from inventory.
func IsHidden(labels map[string]string) bool {
	return labels[labelHide] == "true"
}

// WantsVolumeBackup reports whether a container opted into snapshot/restore.
func WantsVolumeBackup(labels map[string]string) bool {
	return labels[labelBackupVolume] == "true"
}

// ResolveService picks the stable service identifier for a container by the
// ordered rule: hoister.identifier, else com.docker.compose.service, else
// the container name with its leading slash stripped.
func ResolveService(labels map[string]string, containerName string) string {
	if v := labels[labelIdentifier]; v != "" {
		return v
	}
	if v := labels[labelComposeSvc]; v != "" {
		return v
	}
	return strings.TrimPrefix(containerName, "/")
}

// ProjectOf resolves a container's compose project label, falling back to a
// caller-supplied default (the agent's own configured project).
func ProjectOf(labels map[string]string, fallback string) string {
	if v := labels[labelComposeProj]; v != "" {
		return v
	}
	return fallback
}

// Update runs the full state machine for one container. id and name are the
// container's current runtime ID and name; project is the resolved compose
// project (used only for the result record, not for runtime operations).
func (e *Engine) Update(ctx context.Context, project, id, name string) Result {
	res := e.update(ctx, project, id, name)
	metrics.UpdatesTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (e *Engine) update(ctx context.Context, project, id, name string) Result {
	res := Result{ProjectName: project, ContainerID: id}

	if !e.tryLock(name) {
		return Result{ProjectName: project, ContainerID: id, Outcome: OutcomeFailed, Err: ErrUpdateInProgress}
	}
	defer e.unlock(name)

	inspect, err := e.rt.Inspect(ctx, id)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("inspect %s: %w", name, err)
		return res
	}
	if inspect.Config == nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("inspect %s: container config is nil", name)
		return res
	}

	res.ServiceName = ResolveService(inspect.Config.Labels, name)
	oldImage := inspect.Config.Image
	res.Image = oldImage

	pullAuth := ""
	if cred, ok := e.resolver.CredentialFor(oldImage); ok {
		pullAuth = basicAuthHeader(cred.Username, cred.Token)
	}

	outcome, err := e.rt.Pull(ctx, oldImage, pullAuth)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("pull %s: %w", name, err)
		return res
	}
	if outcome == runtime.PullNoUpdate {
		res.Outcome = OutcomeNoUpdate
		return res
	}

	digest, err := e.rt.ImageDigest(ctx, oldImage)
	if err != nil || digest == "" {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("pull %s: resolve digest: %w", name, err)
		return res
	}
	res.Digest = digest

	var backups map[string]string
	if WantsVolumeBackup(inspect.Config.Labels) {
		mounts := snapshot.EligibleMounts(inspect.Mounts)
		backups, err = e.snap.Create(ctx, mounts, e.clk.Now().Unix())
		if err != nil {
			if backups != nil {
				e.snap.Discard(ctx, backups)
			}
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("snapshot volumes for %s: %w", name, err)
			return res
		}
	}

	backupName := id + "-backup"
	if err := e.rt.Stop(ctx, id, stopGraceSeconds); err != nil {
		if backups != nil {
			e.snap.Discard(ctx, backups)
		}
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("stop %s: %w", name, err)
		return res
	}
	if err := e.rt.Rename(ctx, id, backupName); err != nil {
		if backups != nil {
			e.snap.Discard(ctx, backups)
		}
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("rename %s to backup: %w", name, err)
		return res
	}

	candidateCfg := cloneConfig(inspect.Config)
	candidateCfg.Cmd = nil
	candidateCfg.Entrypoint = nil

	candidateID, err := e.rt.Create(ctx, name, candidateCfg, inspect.HostConfig, rebuildNetworkingConfig(inspect.NetworkSettings))
	if err != nil {
		e.log.Error("create candidate failed, restoring backup", "name", name, "error", err)
		e.restoreBackup(ctx, id, backupName, name)
		if backups != nil {
			e.snap.Discard(ctx, backups)
		}
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("create candidate for %s: %w", name, err)
		return res
	}

	if err := e.rt.Start(ctx, candidateID); err != nil {
		res.Outcome = e.rollback(ctx, &res, id, backupName, candidateID, name, backups, fmt.Errorf("start candidate for %s: %w", name, err))
		return res
	}

	select {
	case <-e.clk.After(healthGateDelay):
	case <-ctx.Done():
		res.Outcome = e.rollback(ctx, &res, id, backupName, candidateID, name, backups, ctx.Err())
		return res
	}

	healthy, err := e.healthGate(ctx, candidateID)
	if err != nil || !healthy {
		var gateErr error
		if err != nil {
			gateErr = fmt.Errorf("health gate for %s: %w", name, err)
		} else {
			gateErr = fmt.Errorf("health gate for %s: candidate not healthy at t+5s", name)
		}
		res.Outcome = e.rollback(ctx, &res, id, backupName, candidateID, name, backups, gateErr)
		return res
	}

	if err := e.rt.Remove(ctx, backupName, true); err != nil {
		e.log.Warn("failed to remove backup container after success", "name", name, "error", err)
	}
	if backups != nil {
		e.snap.Discard(ctx, backups)
	}
	_ = e.rt.RemoveImage(ctx, oldImage) // best-effort; may still be in use elsewhere

	res.Outcome = OutcomeSuccess
	return res
}

// healthGate is the single-shot check at t+5s: the candidate must be
// running, and either have no healthcheck configured or report healthy.
func (e *Engine) healthGate(ctx context.Context, id string) (bool, error) {
	inspect, err := e.rt.Inspect(ctx, id)
	if err != nil {
		return false, err
	}
	if inspect.State == nil {
		return false, fmt.Errorf("candidate state is nil")
	}
	if !inspect.State.Running {
		return false, nil
	}
	if inspect.State.Health == nil {
		return true, nil
	}
	return inspect.State.Health.Status == "healthy", nil
}

// rollback stops/removes the failed candidate, restores volumes (if any),
// restores the backup container to its original name, and starts it.
func (e *Engine) rollback(ctx context.Context, res *Result, originalID, backupName, candidateID, name string, backups map[string]string, cause error) Outcome {
	e.log.Warn("rolling back", "name", name, "cause", cause)

	_ = e.rt.Stop(ctx, candidateID, 10)
	if err := e.rt.Remove(ctx, candidateID, true); err != nil {
		e.log.Error("rollback: failed to remove candidate", "name", name, "error", err)
	}

	if backups != nil {
		if err := e.snap.Restore(ctx, backups); err != nil {
			e.log.Error("rollback: volume restore failed", "name", name, "error", err)
			res.Err = fmt.Errorf("rollback volume restore for %s: %w", name, err)
			return OutcomeFailed
		}
	}

	e.restoreBackup(ctx, originalID, backupName, name)
	res.Err = cause
	return OutcomeRollbackFinished
}

// restoreBackup renames the backup container back to its original name and
// starts it, used both on rollback and when candidate creation itself
// fails (no candidate to tear down, just bring the old one back).
func (e *Engine) restoreBackup(ctx context.Context, originalID, backupName, name string) {
	if err := e.rt.Rename(ctx, backupName, name); err != nil {
		e.log.Error("rollback: failed to rename backup back", "name", name, "error", err)
		return
	}
	if err := e.rt.Start(ctx, originalID); err != nil {
		e.log.Error("rollback: failed to restart original container", "name", name, "error", err)
	}
}

// cloneConfig creates a shallow copy of the container config with cloned
// labels, so mutating the clone never touches the inspected original.
func cloneConfig(cfg *container.Config) *container.Config {
	if cfg == nil {
		return &container.Config{}
	}
	clone := *cfg
	clone.Labels = maps.Clone(cfg.Labels)
	return &clone
}

// rebuildNetworkingConfig extracts only IPAM config, aliases, driver opts,
// network ID, and MAC address from NetworkSettings — not operational
// fields like Gateway or IPAddress, which the runtime assigns fresh.
func rebuildNetworkingConfig(ns *container.NetworkSettings) *network.NetworkingConfig {
	if ns == nil || len(ns.Networks) == 0 {
		return nil
	}
	endpoints := make(map[string]*network.EndpointSettings, len(ns.Networks))
	for netName, ep := range ns.Networks {
		endpoints[netName] = &network.EndpointSettings{
			IPAMConfig: ep.IPAMConfig,
			Aliases:    ep.Aliases,
			DriverOpts: ep.DriverOpts,
			NetworkID:  ep.NetworkID,
			MacAddress: ep.MacAddress,
		}
	}
	return &network.NetworkingConfig{EndpointsConfig: endpoints}
}
