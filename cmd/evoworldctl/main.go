package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	api "evoworld/pkg/evoworld"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	storeKind string
	dbPath    string
	logLevel  string
	logger    *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "evoworldctl",
		Short: "Run evolution experiments and inspect their lineages",
		Long: `evoworldctl drives a population of bit-string organisms through
selection and reproduction while tracking every ancestry link.

Runs are kept in memory unless --store sqlite is given, so the query
commands (runs, lineage, generations, oee, compare, export) need the sqlite store
to see runs made by an earlier invocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(g.logLevel)
			if err != nil {
				return err
			}
			g.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.storeKind, "store", "memory", "run store backend: memory or sqlite")
	root.PersistentFlags().StringVar(&g.dbPath, "db-path", "evoworld.db", "sqlite database path")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newRunCmd(g),
		newRunsCmd(g),
		newLineageCmd(g),
		newGenerationsCmd(g),
		newOEECmd(g),
		newCompareCmd(g),
		newExportCmd(g),
	)
	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// openClient builds and initializes a client; callers close it.
func (g *globals) openClient(ctx context.Context, opts api.Options) (*api.Client, error) {
	opts.StoreKind = g.storeKind
	opts.DBPath = g.dbPath
	opts.Logger = g.logger
	client, err := api.New(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
