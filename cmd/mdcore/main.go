package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/consistency"
	"main/internal/engine"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/pipeline"
	"main/internal/pool"
	"main/internal/recorder"
	"main/internal/simd"
	"main/internal/state"
	"main/pkg/conn"
)

const (
	defaultListen  = ":8080"
	defaultPool    = 4096
	commandTimeout = 5 * time.Second
	snapshotFile   = "books.mds"
	journalPrefix  = "journal"
)

func main() {
	if err := run(); err != nil {
		log.Printf("mdcore: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "config.yaml", "configuration file path")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := ops.Load(*configFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Pyroscope.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Pyroscope.AppName,
			ServerAddress:   cfg.Pyroscope.ServerURL,
		})
		if err != nil {
			return err
		}
		defer profiler.Stop()
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPool
	}
	batch := simd.Detect()
	logs.Infof("batch engine enabled: %v", batch.Enabled())

	books := pool.Books(poolSize, cfg.Pipeline.MaxDepth)
	snaps := pool.Snapshots(poolSize / 8)

	selector := pipeline.NewSelector(pipeline.SelectorConfig{
		Weights: pipeline.Weights{
			Depth:      cfg.Pipeline.WeightDepth,
			Frequency:  cfg.Pipeline.WeightFrequency,
			Volatility: cfg.Pipeline.WeightVolatility,
			Load:       cfg.Pipeline.WeightLoad,
		},
		LightBelow:       cfg.Pipeline.LightBelow,
		AggressiveAbove:  cfg.Pipeline.AggressiveAbove,
		Hysteresis:       cfg.Pipeline.Hysteresis,
		MinDwell:         cfg.Pipeline.MinDwell,
		RollbackMultiple: cfg.Pipeline.RollbackMultiple,
	})
	cleaner := pipeline.NewCleaner(pipeline.Config{MaxDepth: cfg.Pipeline.MaxDepth}, selector, batch)
	checker := consistency.NewEngine(cfg.ConsistencyThresholds())
	anomalies := consistency.NewQueue(0)

	tiered, err := cache.NewTiered(cache.Config{
		T1Capacity:    cfg.Cache.T1Capacity,
		T2Dir:         cfg.Cache.T2Dir,
		T2TTL:         cfg.Cache.T2TTL,
		ArchiveAfter:  cfg.Cache.ArchiveAfter,
		T3Dir:         cfg.Cache.T3Dir,
		T3TTL:         cfg.Cache.T3TTL,
		T3Enabled:     cfg.Cache.T3Enabled,
		SweepInterval: cfg.Cache.SweepInterval,
	}, books)
	if err != nil {
		return err
	}
	defer tiered.Close()
	go tiered.RunSweeper(ctx)

	var journal *recorder.Writer
	if cfg.Recorder.Enabled {
		rcfg := recorder.DefaultConfig(cfg.Recorder.Dir)
		if cfg.Recorder.SegmentSize > 0 {
			rcfg.SegmentMaxBytes = cfg.Recorder.SegmentSize
		}
		journal, err = recorder.NewWriter(rcfg)
		if err != nil {
			return err
		}
		if err := journal.Start(ctx); err != nil {
			return err
		}
		defer journal.Close()
	}

	var snapshotPath string
	if cfg.StateDir != "" {
		snapshotPath = filepath.Join(cfg.StateDir, snapshotFile)
	}
	recovered, err := state.Recover(ctx, state.RecoverConfig{
		SnapshotPath: snapshotPath,
		JournalDir:   cfg.Recorder.Dir,
		FilePrefix:   journalPrefix,
	}, books)
	if err != nil {
		return err
	}
	if len(recovered.Books) > 0 {
		logs.Infof("recovered %d books, %d from journal", len(recovered.Books), recovered.FromJournal)
	}

	var archiveQueue *consistency.Queue
	if cfg.Archive.Enabled {
		archiveQueue = consistency.NewQueue(0)
		pg, err := conn.NewPostgres(conn.PostgresOption{
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
			Database: cfg.Archive.Database,
		})
		if err != nil {
			return err
		}
		defer pg.Close()
		archive, err := consistency.NewArchive(consistency.ArchiveConfig{}, archiveQueue, pg.DB())
		if err != nil {
			return err
		}
		go archive.Run(ctx)
	}
	if cfg.Kafka.Enabled {
		publisher := consistency.NewPublisher(consistency.PublisherConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, anomalies)
		defer publisher.Close()
		go publisher.Run(ctx)
	}

	sources, err := cfg.SourceConfigs()
	if err != nil {
		return err
	}
	metrics := obs.NewMetrics()
	eng := engine.New(engine.Config{Sources: sources, BusSize: cfg.BusSize}, engine.Deps{
		Factory:      engine.DefaultFactory,
		Books:        books,
		Snapshots:    snaps,
		Cleaner:      cleaner,
		Selector:     selector,
		Checker:      checker,
		Anomalies:    anomalies,
		ArchiveQueue: archiveQueue,
		Cache:        tiered,
		Journal:      journal,
		Metrics:      metrics,
		Recovered:    recovered.Books,
	})
	client := eng.Client()

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	startCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	err = client.StartCollectors(startCtx)
	cancel()
	if err != nil {
		stop()
		<-runErr
		return err
	}

	if err := ops.Watch(*configFlag, func(next *ops.Config) {
		configs, err := next.SourceConfigs()
		if err != nil {
			logs.Errorf("reload sources, err: %+v", err)
			return
		}
		checker.SetThresholds(next.ConsistencyThresholds())
		reloadCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		if err := client.Reconfigure(reloadCtx, configs); err != nil {
			logs.Errorf("reconfigure, err: %+v", err)
		}
	}); err != nil {
		return err
	}

	server := serveHTTP(cfg.Server.Listen, eng, metrics)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logs.Infof("mdcore running, %d sources configured", len(sources))
	err = <-runErr
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if snapshotPath != "" {
		if err := state.WriteSnapshot(snapshotPath, eng.ExportBooks()); err != nil {
			logs.Errorf("write snapshot, err: %+v", err)
		} else {
			logs.Infof("snapshot written: %s", snapshotPath)
		}
	}
	return nil
}

// serveHTTP exposes readiness and the prometheus surface.
func serveHTTP(listen string, eng *engine.Engine, metrics *obs.Metrics) *http.Server {
	if listen == "" {
		listen = defaultListen
	}
	exporter := obs.NewExporter(metrics, eng.StatsSnapshot)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !eng.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", exporter.Handler())

	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("http server, err: %+v", err)
		}
	}()
	return server
}
