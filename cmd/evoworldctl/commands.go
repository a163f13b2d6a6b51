package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	api "evoworld/pkg/evoworld"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		req         api.RunRequest
		metricsAddr string
		namespace   string
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment and store its records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := api.Options{}
			if metricsAddr != "" {
				if namespace == "" {
					return errors.New("metrics namespace must not be empty")
				}
				opts.MetricsNamespace = namespace
			}
			client, err := g.openClient(ctx, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			if metricsAddr != "" {
				stop, err := serveMetrics(metricsAddr, client.MetricsHandler(), g)
				if err != nil {
					return err
				}
				defer stop()
			}

			summary, err := client.Run(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "run completed run_id=%s strategy=%s tracker=%s generations=%d best=%.4f mean=%.4f coalescence=%d lineage_depth=%d oee_ticks=%d extinct=%t\n",
				summary.RunID,
				summary.Strategy,
				summary.Tracker,
				summary.Generations,
				summary.BestFitness,
				summary.MeanFitness,
				summary.Coalescence,
				summary.LineageDepth,
				summary.OEETicks,
				summary.Extinct,
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ConfigPath, "config", "", "YAML experiment config layered over the defaults")
	f.Int64Var(&req.Seed, "seed", 0, "random seed (0 keeps the configured seed)")
	f.IntVar(&req.Generations, "generations", 0, "generations to run (0 keeps the configured value)")
	f.IntVar(&req.Population, "population", 0, "population size (0 keeps the configured value)")
	f.StringVar(&req.Strategy, "strategy", "", "population strategy: unbounded, synchronous, serial-transfer, grid or pools")
	f.StringVar(&req.Tracker, "tracker", "", "lineage tracker: plain, pruned or none")
	f.StringVar(&req.Selection, "selection", "", "selection method: elite, tournament or fitness-sharing")
	f.StringVar(&req.OutputDir, "out", "", "directory for streamed generation and oee CSV files")
	f.StringVar(&req.RunID, "run-id", "", "explicit run id (default is a random uuid)")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.StringVar(&namespace, "metrics-namespace", "evoworld", "Prometheus metric namespace")
	f.BoolVar(&jsonOut, "json", false, "emit the run summary as JSON")
	return cmd
}

func newRunsCmd(g *globals) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			ctx := cmd.Context()
			client, err := g.openClient(ctx, api.Options{})
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(ctx, api.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			if jsonOut {
				return writeJSON(out, runs)
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s started=%s name=%s strategy=%s tracker=%s selection=%s seed=%d population=%d generations=%d best=%.4f coalescence=%d\n",
					r.RunID,
					r.StartedAtUTC.Format(time.RFC3339),
					r.Name,
					r.Strategy,
					r.Tracker,
					r.Selection,
					r.Seed,
					r.Population,
					r.Generations,
					r.BestFitness,
					r.Coalescence,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

// recordFlags are shared by the commands that read one run's records.
type recordFlags struct {
	req     api.RecordsRequest
	jsonOut bool
}

func (f *recordFlags) bind(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&f.req.Latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&f.req.Limit, "limit", defaultLimit, "max records to print (0 for all)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "emit records as JSON")
}

func newLineageCmd(g *globals) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Print the traced lineage of a run's fittest survivor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, g, func(ctx context.Context, client *api.Client, out io.Writer) error {
				lineage, err := client.Lineage(ctx, f.req)
				if err != nil {
					return err
				}
				if len(lineage) == 0 {
					fmt.Fprintln(out, "no lineage records")
					return nil
				}
				if f.jsonOut {
					return writeJSON(out, lineage)
				}
				for _, rec := range lineage {
					fmt.Fprintf(out, "depth=%d id=%d parent_id=%d genome=%s\n", rec.Depth, rec.ID, rec.ParentID, rec.Genome)
				}
				return nil
			})
		},
	}
	f.bind(cmd, 50)
	return cmd
}

func newGenerationsCmd(g *globals) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "generations",
		Short: "Print per-generation summaries of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, g, func(ctx context.Context, client *api.Client, out io.Writer) error {
				gens, err := client.Generations(ctx, f.req)
				if err != nil {
					return err
				}
				if len(gens) == 0 {
					fmt.Fprintln(out, "no generation records")
					return nil
				}
				if f.jsonOut {
					return writeJSON(out, gens)
				}
				for _, rec := range gens {
					fmt.Fprintf(out, "gen=%d size=%d best=%.4f mean=%.4f std=%.4f births=%d lineage_nodes=%d genomes=%d coalescence=%d\n",
						rec.Generation,
						rec.Size,
						rec.BestFitness,
						rec.MeanFitness,
						rec.StdFitness,
						rec.Births,
						rec.LineageNodes,
						rec.Genomes,
						rec.Coalescence,
					)
				}
				return nil
			})
		},
	}
	f.bind(cmd, 50)
	return cmd
}

func newOEECmd(g *globals) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "oee",
		Short: "Print open-ended evolution metrics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, g, func(ctx context.Context, client *api.Client, out io.Writer) error {
				rows, err := client.OEE(ctx, f.req)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "no oee records")
					return nil
				}
				if f.jsonOut {
					return writeJSON(out, rows)
				}
				for _, rec := range rows {
					fmt.Fprintf(out, "gen=%d change=%d novelty=%d ecology=%.4f complexity=%d\n",
						rec.Generation, rec.Change, rec.Novelty, rec.Ecology, rec.Complexity)
				}
				return nil
			})
		},
	}
	f.bind(cmd, 0)
	return cmd
}

func newCompareCmd(g *globals) *cobra.Command {
	var (
		req     api.CompareRequest
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "compare [run-id...]",
		Short: "Summarize a generation column across runs",
		Long: `compare lines up the generation records of the given runs (every
stored run when none are named) and prints the mean, spread and range of
one column per generation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.RunIDs = args
			return withClient(cmd, g, func(ctx context.Context, client *api.Client, out io.Writer) error {
				points, err := client.Compare(ctx, req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, points)
				}
				for _, p := range points {
					fmt.Fprintf(out, "gen=%d runs=%d mean=%.4f std=%.4f min=%.4f max=%.4f\n",
						p.Generation, p.Runs, p.Mean, p.Std, p.Min, p.Max)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Column, "column", "best", "column: best, mean, min, std, size, lineage_nodes, genomes or coalescence")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit points as JSON")
	return cmd
}

func newExportCmd(g *globals) *cobra.Command {
	var req api.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a run's records to CSV and JSON files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, g, func(ctx context.Context, client *api.Client, out io.Writer) error {
				summary, err := client.Export(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "exported run_id=%s dir=%s files=%d\n", summary.RunID, summary.Directory, len(summary.Files))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&req.OutDir, "out", "exports", "export root directory")
	return cmd
}

func withClient(cmd *cobra.Command, g *globals, fn func(context.Context, *api.Client, io.Writer) error) error {
	ctx := cmd.Context()
	client, err := g.openClient(ctx, api.Options{})
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(ctx, client, cmd.OutOrStdout())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// serveMetrics listens on addr and returns a function that shuts the server
// down.
func serveMetrics(addr string, handler http.Handler, g *globals) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("metrics server stopped", "error", err)
		}
	}()
	g.logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
