// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run.go - Headless run command.
//
// Command: run [flags] paths...
// Short:   Run scripts without a UI and exit
//
// The queue is closed once every given script has been handed out, so the
// command ends when the last one finishes. With --watch the queue stays open
// and scripts dropped into the folder join the run until Ctrl+C. The first
// Ctrl+C stops the run gracefully: running scripts finish, queued ones are
// reported as not run.
//
// Examples:
//
//	batchrun run --parallel 4 jobs/*.sh
//	batchrun run --args="--dry-run" deploy.py
//	batchrun run --watch ./inbox --json
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/session"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/watch"
)

// runOptions is the parsed form of the run command line.
type runOptions struct {
	paths    []string
	watchDir string
	jsonMode bool
	quiet    bool
}

// parseRunArgs applies the run flags to cfg.
func parseRunArgs(args Args, cfg *config.Config) (runOptions, error) {
	p := NewArgParser(args.Raw, "allow-duplicates", "json", "quiet", "q")
	opts := runOptions{
		paths:    p.PositionalFrom(0),
		watchDir: p.Flag("watch"),
		jsonMode: args.JSON || p.BoolFlag("json"),
		quiet:    args.Quiet || p.BoolFlag("quiet") || p.BoolFlag("q"),
	}

	if p.HasFlag("parallel") {
		n, err := ParseIntWithValidation(p.Flag("parallel"), "parallel")
		if err != nil {
			return opts, err
		}
		cfg.Runner.MaxParallel = n
	}
	if p.HasFlag("args") {
		cfg.Runner.DefaultArgs = p.Flag("args")
	}
	if _, err := tasks.SplitArgs(cfg.Runner.DefaultArgs); err != nil {
		return opts, NewValidationErrorWithExample("args", cfg.Runner.DefaultArgs, err.Error(), `--args="--name 'two words'"`)
	}
	if p.BoolFlag("allow-duplicates") {
		cfg.Runner.AllowDuplicates = true
	}
	if p.HasFlag("watch") && opts.watchDir == "" {
		return opts, ErrMissingArgument("watch", "batchrun run --watch ./inbox")
	}
	if len(opts.paths) == 0 && opts.watchDir == "" {
		return opts, ErrMissingArgument("paths", "batchrun run a.sh b.py")
	}

	// Without a drop folder the run ends once the given scripts are done
	cfg.Runner.AutoFinish = opts.watchDir == ""
	return opts, nil
}

// HandleRun handles the "run" command.
func HandleRun(args Args) (err error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	cfg = cfg.Clone()
	opts, err := parseRunArgs(args, cfg)
	if err != nil {
		return err
	}

	log, closeLog, err := openLogger(cfg, args)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeWith(&err, st.Close)

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	out := io.Writer(os.Stdout)
	if opts.jsonMode {
		out = os.Stderr
	}
	data, err := executeRun(ctx, st.sess, cfg, opts, log, out, signals)
	if opts.jsonMode {
		if perr := NewJSONResponse("run", data, err).Print(os.Stdout); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// executeRun adds the scripts, runs them and collects the results. It
// returns a *TasksFailedError when any task failed and an *InterruptedError
// when a signal stopped an otherwise clean run.
func executeRun(ctx context.Context, sess *session.Session, cfg *config.Config, opts runOptions,
	log logging.Logger, out io.Writer, signals <-chan os.Signal) (RunData, error) {

	data := RunData{Parallelism: sess.Parallelism(), Results: []TaskResultData{}}
	progress := !opts.quiet

	var stopping atomic.Bool
	add := func(paths []string) {
		report := sess.Add(paths, cfg.Runner.DefaultArgs)
		for _, s := range report.Skipped {
			data.Skipped = append(data.Skipped, SkippedData{Path: s.Path, Reason: string(s.Reason)})
		}
	}

	add(opts.paths)

	if opts.watchDir != "" {
		w, err := watch.New(watchConfig(cfg, opts.watchDir), log)
		if err != nil {
			return data, err
		}
		existing, err := w.Scan()
		if err != nil {
			return data, err
		}
		add(existing)

		// Drops before the first script start the run; later ones join it
		if err := w.Start(ctx, func(paths []string) {
			if stopping.Load() {
				return
			}
			sess.Add(paths, cfg.Runner.DefaultArgs)
			if !sess.Running() {
				if err := sess.Start(); err != nil {
					log.Error("could not start run", logging.F("error", err))
				}
			}
		}); err != nil {
			return data, err
		}
		defer w.Close()
		if progress {
			fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", opts.watchDir)
		}
	}

	if sess.List().Len() > 0 {
		if err := sess.Start(); err != nil {
			return data, err
		}
	} else if opts.watchDir == "" {
		return data, session.ErrNothingToRun
	}

	var (
		interrupted string
		events      = sess.Events()
	)
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			switch ev.Kind {
			case tasks.EventFinished:
				data.Results = append(data.Results, newTaskResultData(ev.Result))
				if progress {
					printResult(out, ev.Result)
				}
			case tasks.EventRunFinished:
				data.RunID = ev.Stats.RunID
				data.Parallelism = ev.Stats.Parallelism
				data.Stopped = ev.Stats.StopRequested
				data.Succeeded = ev.Stats.Succeeded
				data.Failed = ev.Stats.Failed
				data.NotRun = ev.Stats.NotRun
				data.DurationMS = ev.Stats.FinishedAt.Sub(ev.Stats.StartedAt).Milliseconds()
				break loop
			}

		case sig := <-signals:
			if interrupted != "" {
				log.Warn("still waiting for running scripts to finish")
				continue
			}
			interrupted = sig.String()
			stopping.Store(true)
			if !sess.Running() {
				break loop
			}
			if err := sess.Stop(); err != nil {
				log.Debug("stop", logging.F("error", err))
			}
			if progress {
				fmt.Fprintln(out, "Stopping: running scripts will finish, queued ones are skipped.")
			}

		case <-ctx.Done():
			return data, ctx.Err()
		}
	}

	if progress && data.RunID != "" {
		printRunSummary(out, data)
	}

	switch {
	case data.Failed > 0:
		return data, &TasksFailedError{Failed: data.Failed, NotRun: data.NotRun}
	case interrupted != "":
		return data, &InterruptedError{Signal: interrupted}
	}
	return data, nil
}

// watchConfig builds the drop folder settings for dir.
func watchConfig(cfg *config.Config, dir string) watch.Config {
	return watch.Config{
		Dir:          dir,
		Extensions:   cfg.Watch.Extensions,
		Debounce:     time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		MaxPerSecond: cfg.Watch.MaxPerSecond,
	}
}

func printResult(w io.Writer, res tasks.Result) {
	line := fmt.Sprintf("%s %s", RenderOutcome(res.Outcome.Kind.String()), batch.Entry{Path: res.Task.Path, Args: res.Task.Args}.Label())
	if res.Outcome.Failed() {
		line += "  " + RenderConditional(ErrorStyle, res.Outcome.Reason())
	}
	fmt.Fprintf(w, "%s %s\n", line, RenderConditional(DimStyle, "("+formatDurationShort(res.Duration())+")"))
}

func printRunSummary(w io.Writer, d RunData) {
	fmt.Fprintln(w, RenderSeparator(50))
	printField(w, "Run", d.RunID)
	printField(w, "Succeeded", formatCount(d.Succeeded))
	failed := formatCount(d.Failed)
	if d.Failed > 0 {
		failed = RenderConditional(ErrorStyle, failed)
	}
	printField(w, "Failed", failed)
	if d.NotRun > 0 {
		printField(w, "Not run", RenderConditional(WarningStyle, formatCount(d.NotRun)))
	}
	printField(w, "Duration", formatDurationShort(time.Duration(d.DurationMS)*time.Millisecond))
	fmt.Fprintln(w, session.FinalMessage(tasks.Stats{StopRequested: d.Stopped, NotRun: d.NotRun}))
}
