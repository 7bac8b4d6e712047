// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/session"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/util"
)

// Prompt is shown before every line.
const Prompt = "batchrun> "

// historyFileName is the console history file inside the config directory.
const historyFileName = "console_history"

// =============================================================================
// CONSOLE
// =============================================================================

// Console executes command lines against a session.
type Console struct {
	sess *session.Session
	reg  *Registry
	log  logging.Logger

	mu   sync.Mutex // serializes writes to out
	out  io.Writer
	quit bool
}

// New creates a console writing its output to out.
func New(sess *session.Session, out io.Writer, log logging.Logger) *Console {
	if log == nil {
		log = logging.Nop()
	}
	return &Console{sess: sess, reg: NewRegistry(), log: log, out: out}
}

// Registry returns the command table.
func (c *Console) Registry() *Registry { return c.reg }

// Quitting reports whether quit was executed.
func (c *Console) Quitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quit
}

// Exec parses and runs one line. Blank lines are ignored.
func (c *Console) Exec(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	in, err := c.reg.Parse(line)
	if err != nil {
		return err
	}
	return in.Command.Handler(ctx, c, in)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// HistoryPath returns the history file in the config directory.
func HistoryPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFileName), nil
}

// Run reads lines until quit, EOF or ctx ends. Ctrl+C stops an active run and
// leaves the console otherwise. historyFile may be empty.
func (c *Console) Run(ctx context.Context, historyFile string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	line.SetCompleter(c.Complete)

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			if _, err := line.ReadHistory(f); err != nil {
				c.log.Debug("could not read console history", logging.F("error", err))
			}
			f.Close()
		}
		defer c.saveHistory(line, historyFile)
	}

	followCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.follow(followCtx)

	c.printf("batchrun console. Type help for commands.\n")
	for !c.Quitting() && ctx.Err() == nil {
		input, err := line.Prompt(Prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			if c.sess.Running() && !c.sess.Snapshot().StopRequested {
				c.report(handleStop(ctx, c, Input{}))
				continue
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			c.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		c.report(c.Exec(ctx, input))
	}
	return nil
}

func (c *Console) saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		c.log.Debug("could not save console history", logging.F("error", err))
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		c.log.Debug("could not save console history", logging.F("error", err))
	}
}

func (c *Console) report(err error) {
	if err != nil {
		c.printf("error: %v\n", err)
	}
}

// follow prints task completions and run summaries as they happen.
func (c *Console) follow(ctx context.Context) {
	events := c.sess.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if line := EventLine(ev); line != "" {
				c.printf("\n%s\n", line)
			}
		}
	}
}

// EventLine is the console rendering of an event, or "" for events the
// console does not announce.
func EventLine(ev tasks.Event) string {
	switch ev.Kind {
	case tasks.EventFinished:
		res := ev.Result
		mark := "+"
		if res.Outcome.Failed() {
			mark = "x"
		}
		return fmt.Sprintf("[%s] %s (%s, %s)", mark, res.Task.Name(), res.Outcome.Reason(),
			res.Duration().Round(10*time.Millisecond))
	case tasks.EventRunFinished:
		return session.FinalMessage(ev.Stats)
	}
	return ""
}

// =============================================================================
// HANDLERS
// =============================================================================

func handleAdd(_ context.Context, c *Console, in Input) error {
	before, args := splitDashes(in.Raw)
	paths := parsePaths(before)
	if len(paths) == 0 {
		return &ValidationError{Command: "add", Arg: "path", Message: "required argument missing", Usage: in.Command.Usage}
	}
	if args == "" {
		args = c.sess.DefaultArgs()
	}
	if _, err := tasks.SplitArgs(args); err != nil {
		return err
	}

	report := c.sess.Add(paths, args)
	for _, s := range report.Skipped {
		c.printf("skipped %s: %s\n", s.Path, s.Reason)
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleArgs(_ context.Context, c *Console, in Input) error {
	entry, err := c.entry(in.Args[0])
	if err != nil {
		return err
	}
	rest := strings.TrimSpace(strings.TrimPrefix(in.Raw, in.Args[0]))
	if err := c.sess.EditArgs(rest, entry.ID); err != nil {
		return err
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleRemove(_ context.Context, c *Console, in Input) error {
	ids := make([]tasks.TaskID, 0, len(in.Args))
	for _, arg := range in.Args {
		entry, err := c.entry(arg)
		if err != nil {
			return err
		}
		ids = append(ids, entry.ID)
	}
	c.sess.Remove(ids...)
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleList(_ context.Context, c *Console, _ Input) error {
	entries := c.sess.Entries()
	if len(entries) == 0 {
		c.printf("No scripts. Use add <path...>.\n")
		return nil
	}
	width := len(strconv.Itoa(len(entries)))
	for i, e := range entries {
		c.printf("%*d %s\n", width, i+1, batch.Display(e))
	}
	return nil
}

func handleStart(_ context.Context, c *Console, _ Input) error {
	if err := c.sess.Start(); err != nil {
		return err
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleStop(_ context.Context, c *Console, _ Input) error {
	if err := c.sess.Stop(); err != nil {
		return err
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleFinish(_ context.Context, c *Console, _ Input) error {
	if err := c.sess.Finish(); err != nil {
		return err
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleParallel(_ context.Context, c *Console, in Input) error {
	n, _ := strconv.Atoi(in.Args[0])
	if err := c.sess.SetParallelism(n); err != nil {
		return err
	}
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleDups(_ context.Context, c *Console, in Input) error {
	c.sess.SetAllowDuplicates(strings.EqualFold(in.Args[0], "on"))
	c.printf("%s\n", c.sess.Status())
	return nil
}

func handleStatus(_ context.Context, c *Console, _ Input) error {
	st := c.sess.Snapshot()
	counts := c.sess.List().Counts()
	c.printf("state:    %s\n", st.State)
	c.printf("max:      %d\n", c.sess.Parallelism())
	c.printf("list:     %s (%d pending, %d done, %d failed, %d not run)\n",
		util.Plural(counts.Total, "script"), counts.Pending, counts.Done, counts.Failed, counts.NotRun)
	if st.RunID != "" {
		c.printf("run:      %s  executing %d, queued %d, finished %d/%d\n",
			st.RunID, st.Executing, st.Pending, st.Finished(), st.Started+st.Pending)
	}
	if msg := c.sess.Message(); msg != "" {
		c.printf("message:  %s\n", msg)
	}
	c.printf("status:   %s\n", c.sess.Status())
	return nil
}

// handleWait closes the queue of an open run so the wait can end, then blocks
// until the run is over. Ctrl+C during the wait stops the run.
func handleWait(ctx context.Context, c *Console, _ Input) error {
	if c.sess.Running() {
		if st := c.sess.Snapshot(); !st.QueueClosed && !st.StopRequested {
			if err := c.sess.Finish(); err != nil && !errors.Is(err, tasks.ErrInvalidState) {
				return err
			}
			c.printf("Queue closed. Waiting for running scripts (Ctrl+C stops).\n")
		}
		defer c.stopOnSignal(ctx)()
	}

	if err := c.sess.Wait(ctx); err != nil {
		return err
	}
	if msg := c.sess.Message(); msg != "" {
		c.printf("%s\n", msg)
	} else {
		c.printf("No run in progress.\n")
	}
	return nil
}

// stopOnSignal stops the active run on the first interrupt while liner is not
// reading the terminal. The returned func releases the signal handler.
func (c *Console) stopOnSignal(ctx context.Context) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			c.report(handleStop(ctx, c, Input{}))
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func handleHelp(_ context.Context, c *Console, _ Input) error {
	for _, cmd := range c.reg.All() {
		if cmd.Hidden {
			continue
		}
		c.printf("  %-24s %s\n", cmd.Usage, cmd.Description)
	}
	return nil
}

func handleQuit(_ context.Context, c *Console, _ Input) error {
	c.mu.Lock()
	c.quit = true
	c.mu.Unlock()
	return nil
}

// entry resolves a 1-based list position.
func (c *Console) entry(arg string) (batch.Entry, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return batch.Entry{}, fmt.Errorf("bad entry number %q", arg)
	}
	e, ok := c.sess.List().At(n - 1)
	if !ok {
		return batch.Entry{}, fmt.Errorf("no entry %d (list has %s)", n, util.Plural(c.sess.List().Len(), "script"))
	}
	return e, nil
}
