// Package replicator runs one full two-way reconciliation of a replica pair.
package replicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/executor"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/listing"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/planner"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/state"
)

// Config carries everything a run needs. It is scoped to one invocation.
type Config struct {
	Client   s3client.Client
	Pair     replica.Pair
	StateKey string
	LogKey   string
	Excludes []string
	DryRun   bool
	Clock    clockwork.Clock
	Logger   logger.Logger
}

type Replicator struct {
	pair     replica.Pair
	store    *state.Store
	progress *progress.Log
	lister   *listing.Lister
	executor *executor.Executor
	clock    clockwork.Clock
	logger   logger.Logger
	dryRun   bool
}

// Result describes what a run planned and did. It is returned even when the
// run fails, holding whatever was reached.
type Result struct {
	Plan      []planner.Item
	Summary   planner.Summary
	Completed progress.Set
	Resumed   int
	Snapshot  *state.Snapshot
	DryRun    bool
}

func New(cfg Config) (*Replicator, error) {
	if cfg.Client == nil {
		return nil, errors.New("replicator: client is required")
	}
	if err := cfg.Pair.Validate(); err != nil {
		return nil, fmt.Errorf("replicator: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = &logger.NullLogger{}
	}

	store := state.NewStore(cfg.Client, cfg.Pair, cfg.StateKey, cfg.Clock, cfg.Logger)
	plog := progress.NewLog(cfg.Client, cfg.Pair, cfg.LogKey, cfg.Logger)
	if store.Key() == plog.Key() {
		return nil, fmt.Errorf("replicator: state key and log key must differ, both are %q", store.Key())
	}

	lister, err := listing.NewLister(cfg.Client, []string{store.Key(), plog.Key()}, cfg.Excludes)
	if err != nil {
		return nil, fmt.Errorf("replicator: %w", err)
	}

	return &Replicator{
		pair:     cfg.Pair,
		store:    store,
		progress: plog,
		lister:   lister,
		executor: executor.NewExecutor(cfg.Client, cfg.Pair, plog, cfg.Logger, cfg.DryRun),
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		dryRun:   cfg.DryRun,
	}, nil
}

// Run loads the snapshot and checkpoint, lists both replicas, plans and
// executes the actions, then rebuilds and saves the snapshot from fresh
// listings and clears the checkpoint. A failed run leaves the checkpoint in
// place so the next run resumes after the last completed key.
func (r *Replicator) Run(ctx context.Context) (*Result, error) {
	result := &Result{DryRun: r.dryRun}

	snap := r.store.Load(ctx)

	prior := r.progress.Load(ctx)
	result.Resumed = len(prior)
	result.Completed = prior.Clone()
	if len(prior) > 0 {
		r.logger.Info(fmt.Sprintf("resuming from a previous run, skipping %d already completed keys", len(prior)))
	}

	r.logger.Info(fmt.Sprintf("discovering objects in %s and %s", r.pair.Primary, r.pair.Secondary))
	primary, secondary, err := r.lister.ListPair(ctx, r.pair)
	if err != nil {
		return result, fmt.Errorf("discover objects: %w", err)
	}

	items := planner.Plan(primary, secondary, snap, prior)
	result.Plan = items
	result.Summary = planner.Summarize(items)
	r.logger.Info(fmt.Sprintf("plan: %d copies, %d deletes, %d unchanged",
		result.Summary.Copy, result.Summary.Delete, result.Summary.None))

	done, err := r.executor.Execute(ctx, items, prior)
	result.Completed = done
	if err != nil {
		return result, fmt.Errorf("sync actions: %w", err)
	}

	if r.dryRun {
		return result, nil
	}

	r.logger.Info("sync actions complete, rebuilding state")
	primary, secondary, err = r.lister.ListPair(ctx, r.pair)
	if err != nil {
		return result, fmt.Errorf("rebuild state: %w", err)
	}

	rebuilt := &state.Snapshot{Files: state.Rebuild(primary, secondary, r.clock.Now())}
	if err := r.store.Save(ctx, rebuilt); err != nil {
		return result, fmt.Errorf("save state: %w", err)
	}
	result.Snapshot = rebuilt

	r.logger.Debug("cleaning up progress log")
	if err := r.progress.Clear(ctx); err != nil {
		return result, err
	}

	return result, nil
}
