package sandbox

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName   = "salesbot.sandbox.v1.Sandbox"
	executeMethod = "/" + serviceName + "/Execute"

	fieldSessionID    = "session_id"
	fieldTable        = "table"
	fieldCode         = "code"
	fieldSnapshot     = "snapshot"
	fieldError        = "error"
	fieldColumns      = "columns"
	fieldRows         = "rows"
	fieldTotal        = "total"
	fieldRowsAffected = "rows_affected"
)

// ErrRemote wraps an error the sandbox service reported for the query itself.
var ErrRemote = errors.New("sandbox error")

// sandboxServer is the handler type of the Sandbox service.
type sandboxServer interface {
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*sandboxServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Execute",
		Handler:    executeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salesbot/sandbox/v1/sandbox.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(sandboxServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(sandboxServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server executes queries received over gRPC against a private copy of the
// snapshot each request carries.
type Server struct {
	maxRows int
	timeout time.Duration
	tempDir string
	logger  *slog.Logger
}

// NewServer creates a sandbox server.
func NewServer(maxRows int, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{maxRows: maxRows, timeout: timeout, logger: logger}
}

// Register attaches the Sandbox service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Execute runs one query. Query failures are reported in the response's
// error field; transport-level problems use gRPC status codes.
func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	code := CleanCode(fields[fieldCode].GetStringValue())
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}
	if table := fields[fieldTable].GetStringValue(); table != "" && table != SnapshotTable {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported table %q", table)
	}
	snapshot, err := base64.StdEncoding.DecodeString(fields[fieldSnapshot].GetStringValue())
	if err != nil || len(snapshot) == 0 {
		return nil, status.Error(codes.InvalidArgument, "snapshot is required")
	}

	sessionID := fields[fieldSessionID].GetStringValue()
	start := time.Now()

	res, err := s.run(ctx, snapshot, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		s.logger.Info("Sandbox query failed", "session_id", sessionID, "error", err)
		return structpb.NewStruct(map[string]any{fieldError: err.Error()})
	}

	s.logger.Info("Sandbox query executed",
		"session_id", sessionID,
		"rows", res.Total,
		"duration_ms", time.Since(start).Milliseconds())
	return encodeResult(res)
}

func (s *Server) run(ctx context.Context, snapshot []byte, code string) (*Result, error) {
	dir, err := os.MkdirTemp(s.tempDir, "salesbot-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.logger.Warn("Failed to remove work dir", "dir", dir, "error", rmErr)
		}
	}()

	path := filepath.Join(dir, snapshotFile)
	if err := os.WriteFile(path, snapshot, 0o600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return RunQuery(ctx, db, code, s.maxRows)
}

func encodeResult(r *Result) (*structpb.Struct, error) {
	cols := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c
	}
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}
	return structpb.NewStruct(map[string]any{
		fieldColumns:      cols,
		fieldRows:         rows,
		fieldTotal:        r.Total,
		fieldRowsAffected: r.RowsAffected,
	})
}

func decodeResult(s *structpb.Struct) (*Result, error) {
	fields := s.GetFields()
	if msg := fields[fieldError].GetStringValue(); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
	}

	res := &Result{
		Total:        int(fields[fieldTotal].GetNumberValue()),
		RowsAffected: int64(fields[fieldRowsAffected].GetNumberValue()),
	}
	for _, c := range fields[fieldColumns].GetListValue().GetValues() {
		res.Columns = append(res.Columns, c.GetStringValue())
	}
	for _, row := range fields[fieldRows].GetListValue().GetValues() {
		var cells []string
		for _, v := range row.GetListValue().GetValues() {
			cells = append(cells, v.GetStringValue())
		}
		res.Rows = append(res.Rows, cells)
	}
	return res, nil
}
