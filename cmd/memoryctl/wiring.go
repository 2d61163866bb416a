package main

import (
	"fmt"

	"github.com/memoryctl/memoryctl/internal/claude"
	"github.com/memoryctl/memoryctl/internal/clustering"
	"github.com/memoryctl/memoryctl/internal/consolidate"
	"github.com/memoryctl/memoryctl/internal/dedup"
	"github.com/memoryctl/memoryctl/internal/facade"
	"github.com/memoryctl/memoryctl/internal/maintenance"
	"github.com/memoryctl/memoryctl/internal/metadb"
	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/promotion"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/reinforcement"
	"github.com/memoryctl/memoryctl/internal/scheduler"
	"github.com/memoryctl/memoryctl/pkg/config"
)

// app bundles every component wired from one loaded config, plus the
// databases that need closing on exit.
type app struct {
	cfg    *config.Config
	facade *facade.Facade

	schedulerDB *metadb.Database
	clusterDB   *metadb.Database
	dedupDB     *metadb.Database
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	corpus, err := recordstore.OpenCorpus(cfg.Memory.Root)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}

	schedulerDB, err := metadb.OpenScheduler(cfg.Database.SchedulerPath, cfg.Database.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("open scheduler db: %w", err)
	}
	clusterDB, err := metadb.OpenClusters(cfg.Database.ClusterPath, cfg.Database.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("open cluster db: %w", err)
	}
	dedupDB, err := metadb.OpenDedup(cfg.Database.DedupPath, cfg.Database.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("open dedup db: %w", err)
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(schedulerDB)
	promoter := promotion.New(corpus, sched)
	reinforcer := reinforcement.New(corpus, sched, cfg.Scheduler.ReinforcementThreshold)
	maintainer := maintenance.New(corpus, maintenance.WithThresholds(cfg.Memory.DecayRate, cfg.Memory.ArchiveThreshold))
	clusterer := clustering.New(clusterDB, 0)
	deduper := dedup.New(dedupDB, cfg.Dedup.SemanticBuckets)
	consolidator := consolidate.New(claude.NewReader(""), corpus, o, sched, reinforcer, deduper)

	f := facade.New(facade.Deps{
		Corpus:       corpus,
		Scheduler:    sched,
		Oracle:       o,
		Promoter:     promoter,
		Reinforcer:   reinforcer,
		Maintainer:   maintainer,
		Clusterer:    clusterer,
		Consolidator: consolidator,
		Deduper:      deduper,
	})

	return &app{
		cfg:         cfg,
		facade:      f,
		schedulerDB: schedulerDB,
		clusterDB:   clusterDB,
		dedupDB:     dedupDB,
	}, nil
}

func (a *app) Close() {
	a.schedulerDB.Close()
	a.clusterDB.Close()
	a.dedupDB.Close()
}

func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	if cfg.Oracle.Provider != "anthropic" || cfg.Oracle.APIKey == "" {
		return oracle.NewNullOracle(), nil
	}
	o, err := oracle.NewAnthropicOracle(cfg.Oracle.APIKey, oracle.Config{
		Timeout:    cfg.Oracle.Timeout,
		MaxRetries: cfg.Oracle.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("init anthropic oracle: %w", err)
	}
	return o, nil
}
