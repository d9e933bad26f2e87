package sandbox

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// Container layout.
	snapshotDir   = "/data"
	snapshotFile  = "snapshot.db"
	sandboxUser   = "65534"
	sessionLabel  = "salesbot.sandbox"
	idleSleepSecs = "3600"

	// Resource limits.
	defaultMemoryBytes = 256 * 1024 * 1024 // 256MB
	defaultCPUQuota    = 50000             // 0.5 CPU
	defaultPidsLimit   = 64
)

// ErrQueryFailed wraps a non-zero sqlite3 exit inside the container.
var ErrQueryFailed = errors.New("query failed")

// dockerAPI is the subset of the Docker client the executor uses.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

// DockerConfig configures DockerExecutor.
type DockerConfig struct {
	Image         string
	Runtime       string // "" = default (runc), "runsc" = gVisor
	Timeout       time.Duration
	MaxResultRows int
	MemoryBytes   int64
	CPUQuota      int64
	PidsLimit     int64
	// TempDir holds snapshot files; "" means os.TempDir().
	TempDir string
}

// DockerExecutor runs each query with the sqlite3 CLI inside a throwaway
// container. The container has no network and sees the snapshot through a
// read-only bind mount, so generated statements cannot modify anything.
type DockerExecutor struct {
	cli dockerAPI
	cfg DockerConfig
}

var _ Executor = (*DockerExecutor)(nil)

// NewDockerExecutor creates a Docker-backed executor from the environment's
// Docker settings.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	runtime := cfg.Runtime
	if runtime == "" {
		runtime = "default"
	}
	slog.Info("Docker sandbox initialized", "image", cfg.Image, "runtime", runtime)
	return newDockerExecutor(cli, cfg), nil
}

func newDockerExecutor(cli dockerAPI, cfg DockerConfig) *DockerExecutor {
	if cfg.MemoryBytes == 0 {
		cfg.MemoryBytes = defaultMemoryBytes
	}
	if cfg.CPUQuota == 0 {
		cfg.CPUQuota = defaultCPUQuota
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = defaultPidsLimit
	}
	return &DockerExecutor{cli: cli, cfg: cfg}
}

// Name implements Executor.
func (e *DockerExecutor) Name() string { return "docker" }

// Close implements Executor.
func (e *DockerExecutor) Close() error {
	if err := e.cli.Close(); err != nil {
		return fmt.Errorf("close docker client: %w", err)
	}
	return nil
}

// Open implements Executor. It writes the snapshot file and starts an idle
// container that later queries exec into.
func (e *DockerExecutor) Open(ctx context.Context, table *dataset.Table) (Session, error) {
	dir, err := os.MkdirTemp(e.cfg.TempDir, "salesbot-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	cleanup := func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("Failed to remove snapshot dir", "dir", dir, "error", rmErr)
		}
	}

	path := filepath.Join(dir, snapshotFile)
	if err := WriteSnapshotFile(ctx, path, table); err != nil {
		cleanup()
		return nil, err
	}
	// The container runs as nobody.
	if err := os.Chmod(dir, 0o755); err != nil {
		cleanup()
		return nil, fmt.Errorf("chmod snapshot dir: %w", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		cleanup()
		return nil, fmt.Errorf("chmod snapshot file: %w", err)
	}

	containerID, err := e.startContainer(ctx, dir)
	if err != nil {
		cleanup()
		return nil, err
	}

	slog.Info("Docker sandbox session opened", "container_id", containerID, "rows", table.Len())
	return &dockerSession{exec: e, containerID: containerID, dir: dir}, nil
}

func (e *DockerExecutor) startContainer(ctx context.Context, dir string) (string, error) {
	config := &container.Config{
		Image:           e.cfg.Image,
		User:            sandboxUser,
		WorkingDir:      snapshotDir,
		Entrypoint:      []string{"sleep"},
		Cmd:             []string{idleSleepSecs},
		NetworkDisabled: true,
		Labels:          map[string]string{sessionLabel: "true"},
	}

	hostConfig := &container.HostConfig{
		Runtime:        e.cfg.Runtime,
		NetworkMode:    container.NetworkMode("none"),
		ReadonlyRootfs: true,
		AutoRemove:     false,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		// sqlite3 spills large sorts and GROUP BY to its temp directory.
		Tmpfs: map[string]string{"/tmp": "rw,size=64m"},
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   snapshotDir,
			ReadOnly: true,
		}},
		Resources: container.Resources{
			Memory:    e.cfg.MemoryBytes,
			CPUQuota:  e.cfg.CPUQuota,
			PidsLimit: ptr(e.cfg.PidsLimit),
		},
	}

	resp, err := e.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if errdefs.IsNotFound(err) {
		slog.Info("Sandbox image missing, pulling", "image", e.cfg.Image)
		if pullErr := e.pullImage(ctx); pullErr != nil {
			return "", pullErr
		}
		resp, err = e.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	}
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		e.removeContainer(resp.ID)
		return "", fmt.Errorf("start container %s: %w", resp.ID, err)
	}
	return resp.ID, nil
}

func (e *DockerExecutor) pullImage(ctx context.Context) error {
	rc, err := e.cli.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", e.cfg.Image, err)
	}
	defer func() { _ = rc.Close() }()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("read pull progress: %w", err)
	}
	return nil
}

// removeContainer force-removes a container. It is idempotent and uses its
// own context so cleanup survives a cancelled request.
func (e *DockerExecutor) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) || strings.Contains(err.Error(), "is already in progress") {
			slog.Debug("Container already removed", "container_id", containerID)
			return
		}
		slog.Warn("Failed to remove sandbox container", "container_id", containerID, "error", err)
		return
	}
	slog.Debug("Sandbox container removed", "container_id", containerID)
}

type dockerSession struct {
	exec        *DockerExecutor
	containerID string
	dir         string
}

func (s *dockerSession) Execute(ctx context.Context, code string) (*Result, error) {
	code = CleanCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if s.exec.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.exec.cfg.Timeout)
		defer cancel()
	}

	cli := s.exec.cli
	execResp, err := cli.ContainerExecCreate(ctx, s.containerID, container.ExecOptions{
		Cmd:          []string{"sqlite3", "-readonly", "-bail", "-csv", "-header", snapshotDir + "/" + snapshotFile, code},
		User:         sandboxUser,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return nil, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", inspect.ExitCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, msg)
	}

	return parseCSVResult(stdout.Bytes(), s.exec.cfg.MaxResultRows)
}

func (s *dockerSession) Close() error {
	s.exec.removeContainer(s.containerID)
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove snapshot dir: %w", err)
	}
	return nil
}

// parseCSVResult converts sqlite3 -csv -header output into a Result. The CLI
// prints nothing at all for empty result sets and for statements. When a
// multi-statement query prints several result sets, a change of record width
// starts a new set and the last one is returned.
func parseCSVResult(out []byte, maxRows int) (*Result, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return &Result{}, nil
	}
	r := csv.NewReader(bytes.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sqlite3 output: %w", err)
	}
	start := 0
	for i := 1; i < len(records); i++ {
		if len(records[i]) != len(records[start]) {
			start = i
		}
	}
	records = records[start:]
	res := &Result{Columns: records[0], Total: len(records) - 1}
	for _, rec := range records[1:] {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			break
		}
		res.Rows = append(res.Rows, rec)
	}
	return res, nil
}

func ptr[T any](v T) *T {
	return &v
}
