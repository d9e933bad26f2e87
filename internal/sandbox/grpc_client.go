package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GRPCConfig holds configuration for the remote sandbox client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// TempDir holds snapshot files while they are encoded; "" means os.TempDir().
	TempDir string
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCExecutor sends queries to a remote sandbox service. Each request
// carries the whole snapshot so the service stays stateless.
type GRPCExecutor struct {
	conn   *grpc.ClientConn
	cfg    GRPCConfig
	logger *slog.Logger
}

var _ Executor = (*GRPCExecutor)(nil)

// NewGRPCExecutor connects to the sandbox service and waits until the
// connection is ready. Extra dial options are appended to the defaults.
func NewGRPCExecutor(cfg GRPCConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCExecutor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sandbox at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("sandbox at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to sandbox service", "address", cfg.Address)

	return &GRPCExecutor{conn: conn, cfg: cfg, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name implements Executor.
func (e *GRPCExecutor) Name() string { return "grpc" }

// Close closes the gRPC connection.
func (e *GRPCExecutor) Close() error {
	if e.conn == nil {
		return nil
	}
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("close gRPC connection: %w", err)
	}
	return nil
}

// Open implements Executor by encoding the snapshot once per session.
func (e *GRPCExecutor) Open(ctx context.Context, table *dataset.Table) (Session, error) {
	snapshot, err := encodeSnapshot(ctx, e.cfg.TempDir, table)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	e.logger.Debug("gRPC sandbox session opened", "session_id", id, "snapshot_bytes", len(snapshot))
	return &grpcSession{exec: e, id: id, snapshot: snapshot}, nil
}

func encodeSnapshot(ctx context.Context, tempDir string, table *dataset.Table) (string, error) {
	dir, err := os.MkdirTemp(tempDir, "salesbot-snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, snapshotFile)
	if err := WriteSnapshotFile(ctx, path, table); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

type grpcSession struct {
	exec     *GRPCExecutor
	id       string
	snapshot string
}

func (s *grpcSession) Execute(ctx context.Context, code string) (*Result, error) {
	code = CleanCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if s.exec.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.exec.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{
		fieldSessionID: s.id,
		fieldTable:     SnapshotTable,
		fieldCode:      code,
		fieldSnapshot:  s.snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := s.exec.conn.Invoke(ctx, executeMethod, req, resp); err != nil {
		s.exec.logger.Error("Sandbox execute failed", "error", err, "session_id", s.id)
		return nil, fmt.Errorf("sandbox execute: %w", err)
	}
	return decodeResult(resp)
}

func (s *grpcSession) Close() error {
	s.snapshot = ""
	return nil
}
