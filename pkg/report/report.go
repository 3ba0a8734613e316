// Package report writes plan and result summaries as JSON files.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/planner"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replicator"
)

// PlanResult represents the planned operations before execution
type PlanResult struct {
	Files   []PlanFile      `json:"files"`
	Summary planner.Summary `json:"summary"`
}

type PlanFile struct {
	Action string `json:"action"` // "copy", "delete", "none"
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// SyncResult represents the actual execution results
type SyncResult struct {
	Files     []ResultFile  `json:"files"`
	Errors    []ErrorFile   `json:"errors"`
	Resumed   int           `json:"resumed"`
	Completed []string      `json:"completed"`
	Summary   ResultSummary `json:"summary"`
}

type ResultFile struct {
	Action string `json:"action"` // "copied", "deleted"
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

type ErrorFile struct {
	Error string `json:"error"`
}

type ResultSummary struct {
	Copied  int  `json:"copied"`
	Deleted int  `json:"deleted"`
	Pending int  `json:"pending"`
	Failed  bool `json:"failed"`
}

func BuildPlan(pair replica.Pair, items []planner.Item) PlanResult {
	plan := PlanResult{
		Files:   []PlanFile{},
		Summary: planner.Summarize(items),
	}

	for _, item := range items {
		file := PlanFile{
			Action: string(item.Action),
			Key:    item.Key,
			Reason: item.Reason,
		}
		switch item.Action {
		case planner.ActionCopy:
			file.Source = pair.Get(item.From).URI(item.Key)
			file.Target = pair.Get(item.To).URI(item.Key)
		case planner.ActionDelete:
			file.Target = pair.Get(item.Target).URI(item.Key)
		}
		plan.Files = append(plan.Files, file)
	}

	return plan
}

// BuildResult summarizes a run. Plan items whose key reached the completed
// set count as done; the rest are pending.
func BuildResult(pair replica.Pair, result *replicator.Result, runErr error) SyncResult {
	out := SyncResult{
		Files:     []ResultFile{},
		Errors:    []ErrorFile{},
		Completed: []string{},
	}
	if runErr != nil {
		out.Errors = append(out.Errors, ErrorFile{Error: runErr.Error()})
		out.Summary.Failed = true
	}
	if result == nil {
		return out
	}

	out.Resumed = result.Resumed
	if result.Completed != nil {
		out.Completed = result.Completed.Sorted()
	}

	for _, item := range result.Plan {
		if !item.Mutates() {
			continue
		}
		if result.DryRun || !result.Completed.Has(item.Key) {
			out.Summary.Pending++
			continue
		}
		switch item.Action {
		case planner.ActionCopy:
			out.Files = append(out.Files, ResultFile{
				Action: "copied",
				Source: pair.Get(item.From).URI(item.Key),
				Target: pair.Get(item.To).URI(item.Key),
			})
			out.Summary.Copied++
		case planner.ActionDelete:
			out.Files = append(out.Files, ResultFile{
				Action: "deleted",
				Target: pair.Get(item.Target).URI(item.Key),
			})
			out.Summary.Deleted++
		}
	}

	return out
}

func WritePlan(fs afero.Fs, path string, pair replica.Pair, items []planner.Item) error {
	return writeJSON(fs, path, BuildPlan(pair, items))
}

func WriteResult(fs afero.Fs, path string, pair replica.Pair, result *replicator.Result, runErr error) error {
	return writeJSON(fs, path, BuildResult(pair, result, runErr))
}

func writeJSON(fs afero.Fs, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
