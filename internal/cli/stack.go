// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stack.go - Wiring of a session with its journal, metrics and status server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/history"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/metrics"
	"github.com/jeranaias/batchrun/internal/server"
	"github.com/jeranaias/batchrun/internal/session"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/util"
)

// pollInterval is how often the metrics gauges are refreshed between events.
const pollInterval = time.Second

// stack is a session plus the optional services configured around it.
type stack struct {
	sess   *session.Session
	store  *history.Store
	poller *metrics.Poller
	server *server.Server
	log    logging.Logger

	cancel    context.CancelFunc
	serveDone chan error
}

// openStack builds the session for cfg. The run journal is opened when
// history is enabled; metrics and the status server start when
// metrics.addr is set. Close releases everything.
func openStack(ctx context.Context, cfg *config.Config, log logging.Logger, extra ...session.Option) (*stack, error) {
	st := &stack{log: log}
	opts := []session.Option{session.WithLogger(log)}

	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		store, err := history.Open(path)
		if err != nil {
			// A broken journal must not prevent running scripts
			log.Warn("run journal unavailable", logging.F("path", path), logging.F("error", err))
		} else {
			st.store = store
			opts = append(opts, session.WithJournal(history.NewJournal(store, log, cfg.History.KeepRuns)))
		}
	}

	var (
		registry *prom.Registry
		exporter *metrics.Exporter
	)
	if cfg.Metrics.Addr != "" {
		registry = prom.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var err error
		exporter, err = metrics.NewExporter(metrics.DefaultNamespace, registry)
		if err != nil {
			st.closeStore()
			return nil, err
		}
		opts = append(opts, session.WithMetrics(exporter))
	}

	sess, err := session.New(cfg, append(opts, extra...)...)
	if err != nil {
		st.closeStore()
		return nil, err
	}
	st.sess = sess

	if exporter != nil {
		srv := server.New(cfg.Metrics.Addr, sess, registry, log)
		if err := srv.Listen(); err != nil {
			st.Close()
			return nil, WrapError(err, "status server")
		}
		st.server = srv

		ctx, st.cancel = context.WithCancel(ctx)
		st.poller = metrics.NewPoller(exporter, sess, pollInterval)
		st.poller.Start(ctx)

		st.serveDone = make(chan error, 1)
		go func() { st.serveDone <- srv.Serve(ctx) }()
	}
	return st, nil
}

// Close stops an active run, waits for running scripts and shuts every
// service down.
func (st *stack) Close() error {
	var errs []error
	if st.sess != nil {
		errs = append(errs, st.sess.Close())
	}
	if st.poller != nil {
		st.poller.Stop()
	}
	if st.cancel != nil {
		st.cancel()
	}
	if st.serveDone != nil {
		errs = append(errs, <-st.serveDone)
	}
	errs = append(errs, st.closeStore())
	return errors.Join(errs...)
}

// closeWith calls fn and stores its error in *err unless *err is already
// set. Deferred by commands with a named error result.
func closeWith(err *error, fn func() error) {
	if cerr := fn(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// noteShutdownWait prints a line when Close is about to block on running
// scripts, so a quit with nothing on screen does not look like a hang.
func noteShutdownWait(w io.Writer, s tasks.Stats) {
	if s.State.Active() && s.Executing > 0 {
		fmt.Fprintf(w, "Waiting for %s to finish...\n", util.Plural(s.Executing, "running script"))
	}
}

func (st *stack) closeStore() error {
	if st.store == nil {
		return nil
	}
	err := st.store.Close()
	st.store = nil
	return err
}
