package executor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/planner"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client/s3test"
)

var testPair = replica.Pair{
	Primary:   replica.Replica{Tag: replica.Primary, Bucket: "primary-bucket"},
	Secondary: replica.Replica{Tag: replica.Secondary, Bucket: "secondary-bucket", Prefix: "mirror"},
}

func copyItem(key string, from, to replica.Tag) planner.Item {
	return planner.Item{Key: key, Action: planner.ActionCopy, From: from, To: to}
}

func deleteItem(key string, target replica.Tag) planner.Item {
	return planner.Item{Key: key, Action: planner.ActionDelete, Target: target}
}

func noneItem(key string) planner.Item {
	return planner.Item{Key: key, Action: planner.ActionNone}
}

func newClient() *s3test.MemoryClient {
	c := s3test.NewMemoryClient("primary-bucket", "secondary-bucket")
	c.Seed("primary-bucket", "a.txt", "a")
	c.Seed("secondary-bucket", "mirror/b.txt", "b")
	c.Seed("primary-bucket", "c.txt", "c")
	return c
}

func TestExecuteCheckpointsEachAction(t *testing.T) {
	client := newClient()
	cp := &mockCheckpointer{}
	exec := NewExecutor(client, testPair, cp, &logger.NullLogger{}, false)

	items := []planner.Item{
		copyItem("a.txt", replica.Primary, replica.Secondary),
		copyItem("b.txt", replica.Secondary, replica.Primary),
		noneItem("both.txt"),
		deleteItem("c.txt", replica.Primary),
	}

	done, err := exec.Execute(context.Background(), items, progress.NewSet())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got, want := done.Sorted(), []string{"a.txt", "b.txt", "c.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}

	wantSaved := [][]string{
		{"a.txt"},
		{"a.txt", "b.txt"},
		{"a.txt", "b.txt", "c.txt"},
	}
	if !reflect.DeepEqual(cp.saved, wantSaved) {
		t.Errorf("checkpoints = %v, want %v", cp.saved, wantSaved)
	}

	wantCalls := []string{
		"copy primary-bucket/a.txt -> secondary-bucket/mirror/a.txt",
		"copy secondary-bucket/mirror/b.txt -> primary-bucket/b.txt",
		"delete primary-bucket/c.txt",
	}
	if got := client.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	if got, want := client.Keys("primary-bucket"), []string{"a.txt", "b.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("primary keys = %v, want %v", got, want)
	}
	if got, want := client.Keys("secondary-bucket"), []string{"mirror/a.txt", "mirror/b.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("secondary keys = %v, want %v", got, want)
	}
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	client := newClient()
	client.FailFunc = func(op s3test.Op, bucket, key string) error {
		if op == s3test.OpCopy && key == "mirror/b.txt" {
			return errors.New("access denied")
		}
		return nil
	}
	cp := &mockCheckpointer{}
	exec := NewExecutor(client, testPair, cp, &logger.NullLogger{}, false)

	items := []planner.Item{
		copyItem("a.txt", replica.Primary, replica.Secondary),
		copyItem("b.txt", replica.Secondary, replica.Primary),
		deleteItem("c.txt", replica.Primary),
	}

	done, err := exec.Execute(context.Background(), items, progress.NewSet("earlier.txt"))

	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("Execute() error = %v, want *ActionError", err)
	}
	if actionErr.Item.Key != "b.txt" {
		t.Errorf("failed item = %q, want %q", actionErr.Item.Key, "b.txt")
	}

	if got, want := done.Sorted(), []string{"a.txt", "earlier.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}

	// c.txt must not have been touched.
	if _, ok := client.Body("primary-bucket", "c.txt"); !ok {
		t.Error("c.txt was deleted after an earlier failure")
	}
	if len(cp.saved) != 1 {
		t.Errorf("got %d checkpoints, want 1", len(cp.saved))
	}
}

func TestExecuteStopsWhenCheckpointFails(t *testing.T) {
	client := newClient()
	cp := &mockCheckpointer{
		saveFunc: func(ctx context.Context, completed progress.Set) error {
			return progress.ErrProgressSave
		},
	}
	exec := NewExecutor(client, testPair, cp, &logger.NullLogger{}, false)

	items := []planner.Item{
		copyItem("a.txt", replica.Primary, replica.Secondary),
		deleteItem("c.txt", replica.Primary),
	}

	done, err := exec.Execute(context.Background(), items, progress.NewSet())
	if !errors.Is(err, progress.ErrProgressSave) {
		t.Fatalf("Execute() error = %v, want ErrProgressSave", err)
	}
	if !done.Has("a.txt") {
		t.Error("applied key missing from completed set")
	}
	if len(client.Calls()) != 1 {
		t.Errorf("calls = %v, want only the first copy", client.Calls())
	}
}

func TestExecuteDryRun(t *testing.T) {
	client := newClient()
	cp := &mockCheckpointer{}
	exec := NewExecutor(client, testPair, cp, &logger.NullLogger{}, true)

	items := []planner.Item{
		copyItem("a.txt", replica.Primary, replica.Secondary),
		deleteItem("c.txt", replica.Primary),
	}

	done, err := exec.Execute(context.Background(), items, progress.NewSet())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(done) != 0 {
		t.Errorf("dry run completed %v", done.Sorted())
	}
	if len(client.Calls()) != 0 || len(cp.saved) != 0 {
		t.Errorf("dry run touched replicas: calls=%v checkpoints=%v", client.Calls(), cp.saved)
	}
}

func TestExecuteHonorsCancellation(t *testing.T) {
	client := newClient()
	cp := &mockCheckpointer{}
	exec := NewExecutor(client, testPair, cp, &logger.NullLogger{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cp.saveFunc = func(context.Context, progress.Set) error {
		cancel()
		return nil
	}

	items := []planner.Item{
		copyItem("a.txt", replica.Primary, replica.Secondary),
		deleteItem("c.txt", replica.Primary),
	}

	done, err := exec.Execute(ctx, items, progress.NewSet())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if got, want := done.Sorted(), []string{"a.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}
}

func TestExecuteDoesNotMutateInput(t *testing.T) {
	client := newClient()
	exec := NewExecutor(client, testPair, &mockCheckpointer{}, nil, false)

	in := progress.NewSet()
	if _, err := exec.Execute(context.Background(), []planner.Item{copyItem("a.txt", replica.Primary, replica.Secondary)}, in); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(in) != 0 {
		t.Errorf("input set modified: %v", in.Sorted())
	}
}
