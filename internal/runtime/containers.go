package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/api/types/volume"
	"github.com/moby/moby/client"

	"github.com/hoisterhq/hoister/internal/metrics"
)

// ListManaged returns all containers (running or not, the engine needs to
// see stopped candidates mid-update too) optionally filtered to a single
// compose project. allProjects mirrors a debug build seeing everything.
func (c *Client) ListManaged(ctx context.Context, projectFilter string, allProjects bool) ([]container.Summary, error) {
	opts := client.ContainerListOptions{All: true}
	if !allProjects && projectFilter != "" {
		opts.Filters = make(client.Filters).Add("label", "com.docker.compose.project="+projectFilter)
	}
	result, err := c.api.ContainerList(ctx, opts)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Inspect returns full container details by ID.
func (c *Client) Inspect(ctx context.Context, id string) (container.InspectResponse, error) {
	result, err := c.api.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		return container.InspectResponse{}, err
	}
	return result.Container, nil
}

// Stop stops a running container, granting it timeoutSeconds to exit on its
// own before the runtime sends SIGKILL.
func (c *Client) Stop(ctx context.Context, id string, timeoutSeconds int) error {
	_, err := c.api.ContainerStop(ctx, id, client.ContainerStopOptions{Timeout: &timeoutSeconds})
	return err
}

// Rename changes a container's name in place. Used both to move the old
// container out of the way (to "<id>-backup") and to move it back during
// rollback.
func (c *Client) Rename(ctx context.Context, id, newName string) error {
	_, err := c.api.ContainerRename(ctx, id, client.ContainerRenameOptions{NewName: newName})
	return err
}

// Remove force-removes a container, optionally its anonymous volumes too.
func (c *Client) Remove(ctx context.Context, id string, withVolumes bool) error {
	_, err := c.api.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true, RemoveVolumes: withVolumes})
	return err
}

// Create builds a new container and returns its ID.
func (c *Client) Create(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name:             name,
		Config:           cfg,
		HostConfig:       hostCfg,
		NetworkingConfig: netCfg,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Start starts a stopped container.
func (c *Client) Start(ctx context.Context, id string) error {
	_, err := c.api.ContainerStart(ctx, id, client.ContainerStartOptions{})
	return err
}

// pullMessage is the subset of the runtime's JSON pull-progress stream
// hoister needs to classify the outcome. The stream carries one such object
// per line; unrecognized fields are ignored by json.Unmarshal.
type pullMessage struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Pull pulls imageRef and classifies whether it produced a newer layer, per
// the marker rule: any status line containing "Download complete",
// "Pull complete", or "Downloaded newer image for" means PullNewerLayer.
// auth is the base64-encoded registry auth header value, or empty.
func (c *Client) Pull(ctx context.Context, imageRef string, auth string) (PullOutcome, error) {
	start := time.Now()
	defer func() { metrics.PullDuration.Observe(time.Since(start).Seconds()) }()

	opts := client.ImagePullOptions{}
	if auth != "" {
		opts.RegistryAuth = auth
	}
	stream, err := c.api.ImagePull(ctx, imageRef, opts)
	if err != nil {
		return PullNoUpdate, fmt.Errorf("pull %s: %w", imageRef, err)
	}
	defer stream.Close()

	outcome := PullNoUpdate
	dec := json.NewDecoder(stream)
	for {
		var msg pullMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return outcome, fmt.Errorf("pull %s: decode progress: %w", imageRef, err)
		}
		if msg.Error != "" {
			return outcome, fmt.Errorf("pull %s: %s", imageRef, msg.Error)
		}
		if isNewerLayerStatus(msg.Status) {
			outcome = PullNewerLayer
		}
	}
	return outcome, nil
}

// isNewerLayerStatus matches the pull-stream status markers that indicate a
// newer layer was actually retrieved, as opposed to "Image is up to date"
// or a bare stream end.
func isNewerLayerStatus(status string) bool {
	return strings.Contains(status, "Download complete") ||
		strings.Contains(status, "Pull complete") ||
		strings.Contains(status, "Downloaded newer image for")
}

// ImageDigest returns the repo digest of a locally available image,
// falling back to the image ID when no repo digest is recorded (e.g. a
// locally-built image with no registry origin).
func (c *Client) ImageDigest(ctx context.Context, imageRef string) (string, error) {
	resp, err := c.api.ImageInspect(ctx, imageRef)
	if err != nil {
		return "", err
	}
	if len(resp.RepoDigests) > 0 {
		return resp.RepoDigests[0], nil
	}
	return resp.ID, nil
}

// RemoveImage best-effort removes an image by ID or reference, pruning
// untagged children. Callers treat failures as non-fatal: the image may
// still be referenced by another container.
func (c *Client) RemoveImage(ctx context.Context, idOrRef string) error {
	_, err := c.api.ImageRemove(ctx, idOrRef, client.ImageRemoveOptions{PruneChildren: true})
	return err
}

// VolumeCreate creates a named volume.
func (c *Client) VolumeCreate(ctx context.Context, name string) error {
	_, err := c.api.VolumeCreate(ctx, client.VolumeCreateOptions{Body: volume.CreateOptions{Name: name}})
	return err
}

// VolumeRemove removes a named volume.
func (c *Client) VolumeRemove(ctx context.Context, name string, force bool) error {
	_, err := c.api.VolumeRemove(ctx, name, client.VolumeRemoveOptions{Force: force})
	return err
}

// Exec runs cmd inside an already-running container (used for the volume
// snapshot/restore helper) and returns its exit code and combined output.
func (c *Client) Exec(ctx context.Context, containerID string, cmd []string, timeoutSeconds int) (int, string, error) {
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}
	execResp, err := c.api.ExecCreate(ctx, containerID, client.ExecCreateOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, "", fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.api.ExecAttach(ctx, execResp.ID, client.ExecAttachOptions{})
	if err != nil {
		return -1, "", fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return -1, "", fmt.Errorf("exec read: %w", err)
	}
	if stderr.Len() > 0 {
		stdout.WriteString(stderr.String())
	}

	inspectResp, err := c.api.ExecInspect(ctx, execResp.ID, client.ExecInspectOptions{})
	if err != nil {
		return -1, stdout.String(), fmt.Errorf("exec inspect: %w", err)
	}
	return inspectResp.ExitCode, stdout.String(), nil
}

// SelfContainerized reports whether the current process is itself running
// inside a container, per the detection rule used to pick the volume
// snapshot helper image: presence of /.dockerenv, or /proc/self/cgroup
// containing "/docker/" or "/kubepods/".
func (c *Client) SelfContainerized() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	s := string(data)
	return strings.Contains(s, "/docker/") || strings.Contains(s, "/kubepods/")
}
