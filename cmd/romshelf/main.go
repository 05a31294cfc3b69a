// Command romshelf is a thin example binary wiring catalog, datimport,
// scan, verify, and organise together. It is not the full command-line
// front-end — no argument grammar beyond one path per subcommand, no
// colour, no progress bar rendering — only enough surface to prove the
// library packages compose.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/romshelf/romshelf/catalog"
	"github.com/romshelf/romshelf/datimport"
	"github.com/romshelf/romshelf/organise"
	"github.com/romshelf/romshelf/progress"
	"github.com/romshelf/romshelf/scan"
	"github.com/romshelf/romshelf/verify"
)

var (
	dbPath      string
	metricsAddr string
)

func main() {
	root := &cobra.Command{
		Use:           "romshelf",
		Short:         "ROM collection indexer and verifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "catalog database path")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address while the command runs")

	root.AddCommand(scanCmd(), importCmd(), verifyCmd(), organiseCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "romshelf:", err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "romshelf.db"
	}
	return home + "/.romshelf/romshelf.db"
}

func openStore(ctx context.Context) (*catalog.Store, error) {
	return catalog.Open(ctx, dbPath)
}

// buildSink returns a JSON-lines sink on stdout, fanned out to a
// Prometheus sink if --metrics-addr was set. The /metrics server, if
// started, runs for the lifetime of the process; it's not torn down
// since each subcommand invocation is itself short-lived.
func buildSink() (progress.Sink, error) {
	json := progress.NewJSONSink(os.Stdout)
	if metricsAddr == "" {
		return json, nil
	}

	reg := prometheus.NewRegistry()
	prom, err := progress.NewPrometheusSink(reg)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go http.ListenAndServe(metricsAddr, mux)

	return progress.MultiSink{json, prom}, nil
}

func scanCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "walk a directory tree, hashing every file and archive entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sink, err := buildSink()
			if err != nil {
				return err
			}
			summary, err := scan.Run(ctx, store, args[0], scan.Options{Workers: workers, Sink: sink})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "discovered=%d processed=%d bytes=%s duration=%s\n",
				summary.Discovered, summary.Processed, humanize.Bytes(uint64(summary.TotalBytes)), summary.Duration)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutine count (0 = runtime.NumCPU())")
	return cmd
}

func importCmd() *cobra.Command {
	var category, categoryRoot string
	cmd := &cobra.Command{
		Use:   "import <manifest.dat>",
		Short: "ingest a Logiqx-XML manifest file into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sink, err := buildSink()
			if err != nil {
				return err
			}
			res, err := datimport.Import(ctx, store, args[0], datimport.Options{
				Category: category, CategoryRoot: categoryRoot,
			}, sink)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %s (%d entries)\n", res.Kind, res.Name, res.EntryCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "override derived category")
	cmd.Flags().StringVar(&categoryRoot, "category-root", "", "directory manifests are categorised relative to")
	return cmd
}

func verifyCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "classify every scanned file against the catalog's manifest entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := verify.Run(ctx, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "verified=%d misnamed=%d unmatched=%d missing=%d\n",
				report.Verified, report.Misnamed, report.Unmatched, report.MissingCount)
			if write {
				return verify.WriteMatches(ctx, store, report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "persist the classification as matches rows")
	return cmd
}

func organiseCmd() *cobra.Command {
	var mode string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "organise <output-root>",
		Short: "rename, rebuild, or archive matched files into a new layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := organise.Run(ctx, store, organise.Options{
				Mode: m, OutputRoot: args[0], DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			if dryRun {
				for _, a := range report.Actions {
					marker := ""
					switch a.State {
					case organise.Missing:
						marker = "[MISSING] "
					case organise.Exists:
						marker = "[EXISTS] "
					}
					fmt.Fprintf(os.Stdout, "%s%s -> %s\n", marker, a.SourcePath, a.TargetPath)
				}
			}
			fmt.Fprintf(os.Stdout, "succeeded=%d skipped=%d failed=%d\n",
				report.Succeeded, report.Skipped, report.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "loose", "rename-only | loose | zip-per-set | zip-per-dat")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without writing anything")
	return cmd
}

func parseMode(s string) (organise.Mode, error) {
	switch s {
	case "rename-only":
		return organise.RenameOnly, nil
	case "loose":
		return organise.Loose, nil
	case "zip-per-set":
		return organise.ZipPerSet, nil
	case "zip-per-dat":
		return organise.ZipPerDat, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print collection-wide counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "manifests=%d entries=%d files=%d matched=%d total_size=%s\n",
				stats.ManifestCount, stats.EntryCount, stats.FileCount, stats.MatchedCount, humanize.Bytes(uint64(stats.TotalSize)))
			return nil
		},
	}
}
