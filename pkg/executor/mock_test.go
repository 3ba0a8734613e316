package executor

import (
	"context"

	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
)

// mockCheckpointer records every set it is asked to persist
type mockCheckpointer struct {
	saveFunc func(ctx context.Context, completed progress.Set) error
	saved    [][]string
}

func (m *mockCheckpointer) Save(ctx context.Context, completed progress.Set) error {
	if m.saveFunc != nil {
		if err := m.saveFunc(ctx, completed); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, completed.Sorted())
	return nil
}
