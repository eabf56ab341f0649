package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"culturehub-api/internal/bootstrap"
	"culturehub-api/internal/config"
	"culturehub-api/internal/importer"
	"culturehub-api/internal/logger"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

const defaultBatchSize = 500

// report summarizes an import run.
type report struct {
	importer.Stats
	Inserted int
	Skipped  int
}

func importCmd() *cobra.Command {
	var (
		batchSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import GeoJSON FeatureCollections into the site catalog",
		Long: `Import one or more GeoJSON FeatureCollection files into the site catalog.

Point features become sites; other geometries are skipped. Sites already in
the catalog are left untouched, so running an import twice is safe.
The catalog is selected with the same CATALOG_* and STORE_* environment
variables the API uses.

Examples:
  importer import data/musees.geojson data/monuments.geojson
  importer import data/*.geojson --batch 1000
  importer import data/musees.geojson --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize <= 0 {
				return fmt.Errorf("--batch must be positive")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.App.LogLevel, cfg.App.IsDevelopment())
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx := cmd.Context()
			var sites repository.SiteRepository
			if !dryRun {
				catalog, closeFn, err := openCatalog(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer closeFn()
				sites = catalog
			}

			rep, err := runImport(ctx, sites, args, batchSize, log)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep, dryRun)
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch", "b", defaultBatchSize, "sites written per batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing")

	return cmd
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of sites in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.App.LogLevel, cfg.App.IsDevelopment())
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			catalog, closeFn, err := openCatalog(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := catalog.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

// openCatalog opens the configured catalog and returns a function that
// releases it together with the document store behind it, if any.
func openCatalog(ctx context.Context, cfg *config.Config, log *zap.Logger) (bootstrap.Catalog, func(), error) {
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var store repository.Store
	if cfg.Catalog.Type == "store" || cfg.Catalog.Type == "" {
		s, err := bootstrap.OpenStore(openCtx, cfg.Store, log)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}

	catalog, err := bootstrap.OpenCatalog(openCtx, cfg.Catalog, store, log)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}

	return catalog, func() {
		catalog.Close()
		if store != nil {
			store.Close()
		}
	}, nil
}

// runImport parses every file and writes new sites in batches. A nil sites
// repository parses only.
func runImport(ctx context.Context, sites repository.SiteRepository, paths []string, batchSize int, log *zap.Logger) (report, error) {
	var rep report
	im := importer.New()

	for _, path := range paths {
		parsed, stats, err := parseFile(im, path)
		if err != nil {
			return rep, err
		}
		rep.Stats.Add(stats)
		log.Info("parsed file",
			zap.String("path", path),
			zap.Int("features", stats.Features),
			zap.Int("sites", stats.Sites),
			zap.Int("not_points", stats.NotPoints),
			zap.Int("duplicates", stats.Duplicates),
		)

		if sites == nil {
			continue
		}
		for _, batch := range chunk(parsed, batchSize) {
			n, err := sites.UpsertMany(ctx, batch)
			if err != nil {
				return rep, fmt.Errorf("write %s: %w", path, err)
			}
			rep.Inserted += n
			rep.Skipped += len(batch) - n
		}
	}
	return rep, nil
}

func parseFile(im *importer.Importer, path string) ([]model.Site, importer.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, importer.Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sites, stats, err := im.Parse(f)
	if err != nil {
		return nil, importer.Stats{}, fmt.Errorf("%s: %w", path, err)
	}
	return sites, stats, nil
}

func chunk(sites []model.Site, size int) [][]model.Site {
	var batches [][]model.Site
	for size < len(sites) {
		sites, batches = sites[size:], append(batches, sites[:size])
	}
	if len(sites) > 0 {
		batches = append(batches, sites)
	}
	return batches
}

func printReport(w io.Writer, rep report, dryRun bool) {
	fmt.Fprintf(w, "features:   %d\n", rep.Features)
	fmt.Fprintf(w, "sites:      %d\n", rep.Sites)
	fmt.Fprintf(w, "not points: %d\n", rep.NotPoints)
	fmt.Fprintf(w, "duplicates: %d\n", rep.Duplicates)
	if dryRun {
		fmt.Fprintln(w, "dry run, nothing written")
		return
	}
	fmt.Fprintf(w, "inserted:   %d\n", rep.Inserted)
	fmt.Fprintf(w, "skipped:    %d\n", rep.Skipped)
}
