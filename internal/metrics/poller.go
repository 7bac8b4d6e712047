// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/batchrun/internal/tasks"
)

// StatsSource provides engine snapshots. *tasks.Engine implements it.
type StatsSource interface {
	Snapshot() tasks.Stats
}

// Poller periodically copies engine snapshots into the exporter's gauges.
type Poller struct {
	exporter *Exporter
	source   StatsSource
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. interval <= 0 means one second.
func NewPoller(exporter *Exporter, source StatsSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{exporter: exporter, source: source, interval: interval}
}

// Start begins polling; repeated calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop stops polling and waits for the loop to exit; repeated calls are safe.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.exporter.Observe(p.source.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exporter.Observe(p.source.Snapshot())
		}
	}
}
