// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Interactive batch view and line console.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jeranaias/batchrun/internal/console"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/ui"
	"github.com/jeranaias/batchrun/internal/watch"
)

// HandleTUI handles the default command: the full-screen batch view. Paths
// given on the command line are added before the view opens.
func HandleTUI(args Args) (err error) {
	if err := RequiresTTY("tui"); err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	cfg = cfg.Clone()

	p := NewArgParser(args.Raw, "help-keys")
	if p.HasFlag("theme") {
		cfg.UI.Theme = p.Flag("theme")
	}
	if p.HasFlag("watch") {
		cfg.Watch.Dir = p.Flag("watch")
	}
	if p.BoolFlag("help-keys") {
		cfg.UI.ShowHelp = true
	}

	// The view owns the terminal, so log lines go to its log pane
	sink := ui.NewLogSink()
	log := sink.Logger(logLevel(cfg, args))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeWith(&err, st.Close)

	if paths := p.PositionalFrom(0); len(paths) > 0 {
		st.sess.Add(paths, cfg.Runner.DefaultArgs)
	}

	prog := ui.NewProgram(ui.New(st.sess, ui.Options{
		Theme:    cfg.UI.Theme,
		ShowHelp: cfg.UI.ShowHelp,
		Sink:     sink,
	}))

	if cfg.Watch.Dir != "" {
		w, err := watch.New(watchConfig(cfg, cfg.Watch.Dir), log)
		if err != nil {
			return err
		}
		defer w.Close()
		if existing, err := w.Scan(); err != nil {
			log.Warn("drop folder scan failed", logging.F("dir", cfg.Watch.Dir), logging.F("error", err))
		} else if len(existing) > 0 {
			st.sess.Add(existing, cfg.Runner.DefaultArgs)
		}
		if err := w.Start(ctx, prog.Drop); err != nil {
			return err
		}
	}

	_, err = prog.Run()
	// The alt screen is gone and the log pane has no reader from here on
	noteShutdownWait(os.Stderr, st.sess.Snapshot())
	if err != nil {
		return fmt.Errorf("batch view: %w", err)
	}
	return nil
}

// HandleConsole handles the "console" command: a readline prompt over the
// same session the batch view drives.
func HandleConsole(args Args) (err error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	cfg = cfg.Clone()

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

	if paths := NewArgParser(args.Raw).PositionalFrom(0); len(paths) > 0 {
		st.sess.Add(paths, cfg.Runner.DefaultArgs)
	}

	histFile, err := console.HistoryPath()
	if err != nil {
		log.Warn("console history disabled", logging.F("error", err))
		histFile = ""
	}
	c := console.New(st.sess, os.Stdout, log)
	err = c.Run(ctx, histFile)
	noteShutdownWait(os.Stdout, st.sess.Snapshot())
	return err
}
