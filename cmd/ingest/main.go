// Ingest loads a semicolon-delimited sales file into the SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/salesbot/internal/ingest"
	"github.com/ashureev/salesbot/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultInput  = "sales.csv"
	defaultOutput = "sales.db"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the ingest command. Diagnostics go to out.
func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.AutomaticEnv()
	v.SetDefault("input", defaultInput)
	v.SetDefault("output", defaultOutput)
	v.SetDefault("sheet", "")

	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Load sales data into SQLite",
		Long:          `Reads a semicolon-delimited sales CSV (or an .xlsx workbook), coerces dates and numbers, flags rows whose planned and actual prices are both zero, and replaces the "sales" table in the SQLite database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), out, v.GetString("input"), v.GetString("output"), v.GetString("sheet"))
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", defaultInput, "sales file to read (.csv or .xlsx)")
	flags.StringP("output", "o", defaultOutput, "SQLite database file to write")
	flags.String("sheet", "", "workbook sheet to read (default: first sheet)")
	for _, name := range []string{"input", "output", "sheet"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return cmd
}

func run(ctx context.Context, out io.Writer, input, output, sheet string) error {
	repo, err := store.NewSQLite(output, store.Options{})
	if err != nil {
		fmt.Fprintf(out, "Erro ao conectar ao banco SQLite: %v\n", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	_, err = ingest.Run(ctx, ingest.Options{Input: input, Sheet: sheet}, repo)
	var ingestErr *ingest.Error
	switch {
	case err == nil:
		fmt.Fprintln(out, "Dados inseridos no SQLite com sucesso!")
		return nil
	case errors.As(err, &ingestErr) && ingestErr.Stage == ingest.StageRead:
		fmt.Fprintf(out, "Erro ao ler %s: %v\n", input, ingestErr.Err)
	case errors.As(err, &ingestErr):
		fmt.Fprintf(out, "Erro ao inserir dados no SQLite: %v\n", ingestErr.Err)
	default:
		fmt.Fprintf(out, "Erro ao inserir dados no SQLite: %v\n", err)
	}
	return err
}
