package executor

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/planner"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
)

// Checkpointer persists the set of completed keys.
type Checkpointer interface {
	Save(ctx context.Context, completed progress.Set) error
}

type Executor struct {
	client     s3client.Client
	pair       replica.Pair
	checkpoint Checkpointer
	logger     logger.Logger
	dryRun     bool
}

func NewExecutor(client s3client.Client, pair replica.Pair, checkpoint Checkpointer, log logger.Logger, dryRun bool) *Executor {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Executor{
		client:     client,
		pair:       pair,
		checkpoint: checkpoint,
		logger:     log,
		dryRun:     dryRun,
	}
}

// ActionError reports the item whose remote action failed.
type ActionError struct {
	Item planner.Item
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Item.Action, e.Item.Key, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Execute applies items one at a time in order. After each copy or delete
// succeeds its key joins the completed set and the whole set is checkpointed
// before moving on. The first failure stops execution; the returned set then
// holds every key completed so far, including those passed in.
func (e *Executor) Execute(ctx context.Context, items []planner.Item, completed progress.Set) (progress.Set, error) {
	done := completed.Clone()

	for _, item := range items {
		if !item.Mutates() {
			e.logger.Debug(fmt.Sprintf("skip: %s (%s)", item.Key, item.Reason))
			continue
		}

		if err := ctx.Err(); err != nil {
			return done, err
		}

		e.logItem(item)
		if e.dryRun {
			continue
		}

		if err := e.executeItem(ctx, item); err != nil {
			e.logger.Error(string(item.Action), item.Key, err)
			return done, &ActionError{Item: item, Err: err}
		}

		done.Add(item.Key)
		if err := e.checkpoint.Save(ctx, done); err != nil {
			return done, fmt.Errorf("checkpoint after %s: %w", item.Key, err)
		}
	}

	return done, nil
}

func (e *Executor) logItem(item planner.Item) {
	switch item.Action {
	case planner.ActionCopy:
		e.logger.Copy(e.pair.Get(item.From).URI(item.Key), e.pair.Get(item.To).URI(item.Key))
	case planner.ActionDelete:
		e.logger.Delete(e.pair.Get(item.Target).URI(item.Key))
	}
}

func (e *Executor) executeItem(ctx context.Context, item planner.Item) error {
	switch item.Action {
	case planner.ActionCopy:
		return e.copyObject(ctx, item)
	case planner.ActionDelete:
		return e.deleteObject(ctx, item)
	default:
		return nil
	}
}

func (e *Executor) copyObject(ctx context.Context, item planner.Item) error {
	src := e.pair.Get(item.From)
	dst := e.pair.Get(item.To)

	err := e.client.CopyObject(ctx, &s3client.CopyObjectRequest{
		SourceBucket: src.Bucket,
		SourceKey:    src.ObjectKey(item.Key),
		DestBucket:   dst.Bucket,
		DestKey:      dst.ObjectKey(item.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}

	return nil
}

func (e *Executor) deleteObject(ctx context.Context, item planner.Item) error {
	target := e.pair.Get(item.Target)

	err := e.client.DeleteObject(ctx, &s3client.DeleteObjectRequest{
		Bucket: target.Bucket,
		Key:    target.ObjectKey(item.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	return nil
}
