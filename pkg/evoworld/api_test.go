package evoworld

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func TestClientRunRunsAndExport(t *testing.T) {
	exportsDir := filepath.Join(t.TempDir(), "exports")
	client := newTestClient(t, Options{StoreKind: "memory", ExportsDir: exportsDir})
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{
		Seed:        42,
		Generations: 12,
		Population:  16,
		RunID:       "first",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "first" {
		t.Fatalf("unexpected run id: %s", summary.RunID)
	}
	if summary.Generations != 12 {
		t.Fatalf("unexpected generations: %d", summary.Generations)
	}
	if summary.Strategy != "synchronous" || summary.Tracker != "pruned" {
		t.Fatalf("unexpected defaults: %+v", summary)
	}
	if summary.LineageDepth == 0 {
		t.Fatal("expected a traced lineage")
	}

	second, err := client.Run(ctx, RunRequest{Seed: 7, Generations: 4, Population: 16, Strategy: "grid", RunID: "second"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != second.RunID || runs[1].RunID != summary.RunID {
		t.Fatalf("expected most recent run first: %+v", runs)
	}
	if runs[0].Strategy != "grid" || runs[0].Seed != 7 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}
	limited, err := client.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("runs limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected one run, got %d", len(limited))
	}

	lineage, err := client.Lineage(ctx, RecordsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(lineage) != summary.LineageDepth {
		t.Fatalf("lineage length %d, summary depth %d", len(lineage), summary.LineageDepth)
	}
	if lineage[len(lineage)-1].ParentID != 0 {
		t.Fatalf("expected lineage to end at a founder: %+v", lineage[len(lineage)-1])
	}

	gens, err := client.Generations(ctx, RecordsRequest{Latest: true, Limit: 2})
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(gens) != 2 || gens[0].Generation != 1 {
		t.Fatalf("unexpected generations: %+v", gens)
	}

	oee, err := client.OEE(ctx, RecordsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("oee: %v", err)
	}
	if len(oee) != summary.OEETicks {
		t.Fatalf("oee rows %d, summary ticks %d", len(oee), summary.OEETicks)
	}

	points, err := client.Compare(ctx, CompareRequest{Column: "best"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("expected one point per generation of the longest run, got %d", len(points))
	}
	if points[0].Runs != 2 || points[11].Runs != 1 {
		t.Fatalf("unexpected run counts: first=%+v last=%+v", points[0], points[11])
	}
	if points[11].Max != summary.BestFitness {
		t.Fatalf("expected final best %v, got %+v", summary.BestFitness, points[11])
	}
	if _, err := client.Compare(ctx, CompareRequest{RunIDs: []string{"first"}, Column: "median"}); err == nil {
		t.Fatal("expected error for unknown column")
	}

	exported, err := client.Export(ctx, ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Directory != filepath.Join(exportsDir, summary.RunID) {
		t.Fatalf("unexpected export directory: %s", exported.Directory)
	}
	for _, name := range []string{"run.json", "generations.csv", "lineage.csv"} {
		if !slices.Contains(exported.Files, name) {
			t.Fatalf("expected %s in export files: %v", name, exported.Files)
		}
		if _, err := os.Stat(filepath.Join(exported.Directory, name)); err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(exported.Directory, "generations.csv"))
	if err != nil {
		t.Fatalf("read generations.csv: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 13 {
		t.Fatalf("expected header plus 12 rows, got %d lines", len(lines))
	}
}

func TestClientRequestValidation(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	ctx := context.Background()

	if _, err := client.Lineage(ctx, RecordsRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error for run id with latest")
	}
	if _, err := client.Generations(ctx, RecordsRequest{RunID: "x", Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
	if _, err := client.OEE(ctx, RecordsRequest{}); err == nil {
		t.Fatal("expected error without run id")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
	if _, err := client.Lineage(ctx, RecordsRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if _, err := client.Run(ctx, RunRequest{Strategy: "torus"}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestClientRunWithoutTrackerDisablesOEE(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	summary, err := client.Run(context.Background(), RunRequest{Generations: 3, Population: 10, Tracker: "none"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.LineageDepth != 0 || summary.OEETicks != 0 {
		t.Fatalf("expected no lineage or oee: %+v", summary)
	}
}

func TestClientMetricsHandler(t *testing.T) {
	if h := newTestClient(t, Options{StoreKind: "memory"}).MetricsHandler(); h != nil {
		t.Fatal("expected nil handler without namespace")
	}
	if h := newTestClient(t, Options{StoreKind: "memory", MetricsNamespace: "evoworld"}).MetricsHandler(); h == nil {
		t.Fatal("expected metrics handler")
	}
}

func TestClientRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "redis"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
