// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Run journal browsing.
//
// Command: history [--limit N] [--run ID] [--json]
// Short:   List past runs or show the results of one run
//
// Run ids may be shortened to any unique prefix.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/batchrun/internal/history"
)

// defaultHistoryLimit is how many runs "history" lists.
const defaultHistoryLimit = 20

// HandleHistory handles the "history" command.
func HandleHistory(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	limit := defaultHistoryLimit
	if p.HasFlag("limit") {
		if limit, err = ParseIntWithValidation(p.Flag("limit"), "limit"); err != nil {
			return err
		}
	}
	runID := p.Flag("run")
	if runID == "" {
		runID = p.Positional(0)
	}

	path, err := cfg.HistoryPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewNotFoundError("run journal", path)
	}
	store, err := history.Open(path)
	if err != nil {
		return WrapError(err, "open run journal")
	}
	defer store.Close()

	if runID != "" {
		return showRun(os.Stdout, store, runID, jsonMode)
	}
	return listRuns(os.Stdout, store, limit, jsonMode)
}

func listRuns(w io.Writer, store *history.Store, limit int, jsonMode bool) error {
	runs, err := store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if jsonMode {
		data := make([]HistoryRunData, 0, len(runs))
		for _, r := range runs {
			data = append(data, newHistoryRunData(r))
		}
		return NewJSONResponse("history", data, nil).Print(w)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}
	fmt.Fprintln(w, TitleStyle.Render("Recent runs"))
	fmt.Fprintln(w, RenderSeparator(60))
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-16s  %s  %s\n",
			shortRunID(r.ID),
			formatAgo(r.StartedAt),
			runTally(r),
			RenderConditional(DimStyle, runState(r)))
	}
	return nil
}

func showRun(w io.Writer, store *history.Store, prefix string, jsonMode bool) error {
	id, err := store.ResolveRunID(prefix)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			return NewNotFoundError("run", prefix)
		}
		return err
	}
	records, err := store.Results(id)
	if err != nil {
		return err
	}

	if jsonMode {
		data := make([]HistoryResultData, 0, len(records))
		for _, r := range records {
			data = append(data, newHistoryResultData(r))
		}
		return NewJSONResponse("history", map[string]any{"run_id": id, "results": data}, nil).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("Run "+id))
	fmt.Fprintln(w, RenderSeparator(60))
	if len(records) == 0 {
		fmt.Fprintln(w, "No results recorded for this run.")
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%s %s", RenderOutcome(r.Outcome), r.Path)
		if r.Args != "" {
			line += "  [" + r.Args + "]"
		}
		switch {
		case r.Error != "":
			line += "  " + RenderConditional(ErrorStyle, r.Error)
		case r.Outcome != history.OutcomeNotRun && r.ExitCode != 0:
			line += "  " + RenderConditional(ErrorStyle, fmt.Sprintf("Code: %d", r.ExitCode))
		}
		if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
			line += " " + RenderConditional(DimStyle, "("+formatDurationShort(r.FinishedAt.Sub(r.StartedAt))+")")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runTally(r history.Run) string {
	parts := []string{RenderConditional(SuccessStyle, formatCount(r.Succeeded)+" ok")}
	if r.Failed > 0 {
		parts = append(parts, RenderConditional(ErrorStyle, formatCount(r.Failed)+" failed"))
	}
	if r.NotRun > 0 {
		parts = append(parts, RenderConditional(WarningStyle, formatCount(r.NotRun)+" not run"))
	}
	return strings.Join(parts, ", ")
}

func runState(r history.Run) string {
	switch {
	case !r.Finished():
		return "unfinished"
	case r.Stopped:
		return "stopped after " + formatDurationShort(r.FinishedAt.Sub(r.StartedAt))
	default:
		return "took " + formatDurationShort(r.FinishedAt.Sub(r.StartedAt))
	}
}
