package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sixdegrees/bacond/internal/buildgraph"
	"github.com/sixdegrees/bacond/internal/config"
	"github.com/sixdegrees/bacond/internal/dataset"
	"github.com/sixdegrees/bacond/internal/engine"
	"github.com/sixdegrees/bacond/internal/fetch"
	neo4jrepo "github.com/sixdegrees/bacond/internal/graph/neo4j"
	"github.com/sixdegrees/bacond/internal/imdb"
	"github.com/sixdegrees/bacond/internal/observability"
	"github.com/sixdegrees/bacond/internal/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bacond",
		Short: "Bacon-distance dataset builder and query service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "bacond.yaml", "Config file path")

	var (
		titleBasics     string
		titlePrincipals string
		nameBasics      string
		outputPath      string
		shards          int
		maxSkipRatio    float64
	)
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the movies/actors dataset from raw IMDB dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), configPath, buildOverrides{
				titleBasics:     titleBasics,
				titlePrincipals: titlePrincipals,
				nameBasics:      nameBasics,
				outputPath:      outputPath,
				shards:          shards,
				maxSkipRatio:    maxSkipRatio,
			})
		},
	}
	buildCmd.Flags().StringVar(&titleBasics, "title-basics", "", "Path to the title.basics.tsv IMDB file")
	buildCmd.Flags().StringVar(&titlePrincipals, "title-principals", "", "Path to the title.principals.tsv IMDB file")
	buildCmd.Flags().StringVar(&nameBasics, "name-basics", "", "Path to the name.basics.tsv IMDB file")
	buildCmd.Flags().StringVar(&outputPath, "out", "", "Output path for the dataset file")
	buildCmd.Flags().IntVar(&shards, "shards", 0, "Parallel adjacency shards (0 = GOMAXPROCS)")
	buildCmd.Flags().Float64Var(&maxSkipRatio, "max-skip-ratio", -1, "Abort when skipped/total rows exceeds this ratio")

	var (
		actorName   string
		datasetPath string
	)
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Print the bacon distance of an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), configPath, actorName, datasetPath)
		},
	}
	queryCmd.Flags().StringVar(&actorName, "actor", "", "The actor to calculate the bacon distance of")
	queryCmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to the dataset file produced by bacond build")
	_ = queryCmd.MarkFlagRequired("actor")

	var refresh bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve bacon-distance queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, refresh)
		},
	}
	serveCmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch dumps and rebuild the dataset before serving")

	var dataDir string
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download or refresh the raw IMDB dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), configPath, dataDir)
		},
	}
	fetchCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory to store the dumps in")

	var loadDataset string
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk-load a built dataset into Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), configPath, loadDataset)
		},
	}
	loadCmd.Flags().StringVar(&loadDataset, "dataset", "", "Path to the dataset file to load")

	rootCmd.AddCommand(buildCmd, queryCmd, serveCmd, fetchCmd, loadCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type buildOverrides struct {
	titleBasics     string
	titlePrincipals string
	nameBasics      string
	outputPath      string
	shards          int
	maxSkipRatio    float64
}

func runBuild(ctx context.Context, configPath string, ov buildOverrides) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	src := buildgraph.Sources{
		TitleBasics:     firstOf(ov.titleBasics, cfg.Data.TitleBasics),
		TitlePrincipals: firstOf(ov.titlePrincipals, cfg.Data.TitlePrincipals),
		NameBasics:      firstOf(ov.nameBasics, cfg.Data.NameBasics),
	}
	out := firstOf(ov.outputPath, cfg.Data.DatasetPath)

	maxSkip := cfg.Build.MaxSkipRatio
	if ov.maxSkipRatio >= 0 {
		maxSkip = ov.maxSkipRatio
	}
	shards := cfg.Build.Shards
	if ov.shards > 0 {
		shards = ov.shards
	}

	ctx, span := observability.StartBuildSpan(ctx, "pipeline")
	defer span.End()

	start := time.Now()
	d, err := buildgraph.Build(ctx, src, buildgraph.Options{
		Ingest: imdb.Options{
			TitleTypes:    cfg.Build.TitleTypes,
			JobCategories: cfg.Build.JobCategories,
			MaxSkipRatio:  maxSkip,
		},
		Shards: shards,
		Logger: log,
	})
	if err != nil {
		return err
	}
	if err := dataset.Save(out, d); err != nil {
		return err
	}

	log.Info("dataset built",
		"path", out,
		"movies", d.Movies(),
		"actors", d.Actors(),
		"duration", time.Since(start))
	return nil
}

func runQuery(ctx context.Context, configPath, actor, datasetPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	path := firstOf(datasetPath, cfg.Data.DatasetPath)
	d, err := dataset.Load(path)
	if err != nil {
		return err
	}

	eng := engine.New(cfg.Query.ReferenceActor)
	eng.Load(d)

	distance, err := eng.Distance(ctx, actor)
	switch {
	case err == nil:
		fmt.Println(distance)
		return nil
	case errors.Is(err, engine.ErrUnknownActor):
		fmt.Printf("Actor %q wasn't found!\n", actor)
	case errors.Is(err, engine.ErrNoPath):
		fmt.Println("Infinity")
	default:
		return err
	}
	os.Exit(1)
	return nil
}

func runServe(ctx context.Context, configPath string, refresh bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:  "bacond",
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	}()

	if refresh || cfg.Server.Refresh {
		log.Info("refreshing IMDB data")
		updated, err := fetch.New(cfg.Data.Dir, log).Refresh(ctx)
		if err != nil {
			return err
		}
		if updated {
			log.Info("rebuilding dataset")
			d, err := buildgraph.Build(ctx, buildgraph.Sources{
				TitleBasics:     cfg.Data.TitleBasics,
				TitlePrincipals: cfg.Data.TitlePrincipals,
				NameBasics:      cfg.Data.NameBasics,
			}, buildgraph.Options{
				Ingest: imdb.Options{
					TitleTypes:    cfg.Build.TitleTypes,
					JobCategories: cfg.Build.JobCategories,
					MaxSkipRatio:  cfg.Build.MaxSkipRatio,
				},
				Shards: cfg.Build.Shards,
				Logger: log,
			})
			if err != nil {
				return err
			}
			if err := dataset.Save(cfg.Data.DatasetPath, d); err != nil {
				return err
			}
		}
	}

	eng := engine.New(cfg.Query.ReferenceActor)
	if d, err := dataset.Load(cfg.Data.DatasetPath); err != nil {
		log.Warn("dataset not loaded yet", "path", cfg.Data.DatasetPath, "error", err)
	} else {
		eng.Load(d)
		log.Info("dataset loaded", "actors", d.Actors(), "movies", d.Movies())
	}

	srv := server.New(&server.Config{Addr: cfg.Server.Addr}, eng, log)

	if cfg.Server.Watch {
		go func() {
			if err := server.WatchDataset(ctx, cfg.Data.DatasetPath, eng, srv, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("dataset watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}

func runFetch(ctx context.Context, configPath, dataDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	dir := firstOf(dataDir, cfg.Data.Dir)
	updated, err := fetch.New(dir, log).Refresh(ctx)
	if err != nil {
		return err
	}
	if updated {
		log.Info("dumps refreshed", "dir", dir)
	} else {
		log.Info("dumps already up to date", "dir", dir)
	}
	return nil
}

func runLoad(ctx context.Context, configPath, datasetPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	path := firstOf(datasetPath, cfg.Data.DatasetPath)
	d, err := dataset.Load(path)
	if err != nil {
		return err
	}

	repo, err := neo4jrepo.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.BatchSize)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	start := time.Now()
	if err := repo.BulkLoad(ctx, d); err != nil {
		return err
	}
	log.Info("dataset loaded into Neo4j",
		"actors", d.Actors(), "duration", time.Since(start))
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
