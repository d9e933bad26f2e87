package sandbox

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/salesbot/internal/config"
)

// New builds the executor selected by cfg.Executor.
func New(cfg config.SandboxConfig, maxRows int, logger *slog.Logger) (Executor, error) {
	switch cfg.Executor {
	case config.ExecutorSQLite, "":
		return NewSQLiteExecutor(maxRows, cfg.Timeout), nil
	case config.ExecutorDocker:
		e, err := NewDockerExecutor(DockerConfig{
			Image:         cfg.Image,
			Timeout:       cfg.Timeout,
			MaxResultRows: maxRows,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ExecutorGRPC:
		gcfg := DefaultGRPCConfig(cfg.Addr)
		if cfg.Timeout > 0 {
			gcfg.RequestTimeout = cfg.Timeout
		}
		e, err := NewGRPCExecutor(gcfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown executor %q", cfg.Executor)
	}
}
