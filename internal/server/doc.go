// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes a running batch over HTTP.
//
// # Endpoints
//
//   - GET /health  - liveness and whether a run is active
//   - GET /status  - counters of the current or last run plus the status line
//   - GET /entries - the batch list with each entry's last result
//   - GET /metrics - Prometheus metrics
//
// The server is read-only. It is started by the headless runner and the TUI
// when metrics.addr is set.
//
// # Usage
//
//	srv := server.New(cfg.Metrics.Addr, sess, reg, log)
//	if err := srv.Listen(); err != nil {
//		return err
//	}
//	go srv.Serve(ctx)
package server
