// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Helpers shared by the batchrun commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/logging"
)

// loadConfig loads --config when given, otherwise the default files.
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// logLevel resolves the configured level; -v and -q override it.
func logLevel(cfg *config.Config, args Args) logging.Level {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	switch {
	case args.Verbose:
		level = logging.LevelDebug
	case args.Quiet:
		level = logging.LevelError
	}
	return level
}

// openLogger returns the headless logger: log.file when configured,
// otherwise stderr. The returned func closes the file.
func openLogger(cfg *config.Config, args Args) (*logging.StdLogger, func() error, error) {
	level := logLevel(cfg, args)
	if cfg.Log.File == "" {
		return logging.New(os.Stderr, level), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logging.New(f, level), f.Close, nil
}

// formatDurationShort formats a duration compactly ("850ms", "12.3s", "4m05s").
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", h, m)
}

// formatAgo formats a past time relative to now ("3 minutes ago").
func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// formatCount formats a count with thousands separators.
func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

// printField prints a "label value" line.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", RenderLabel(label), value)
}
