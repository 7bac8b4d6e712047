// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exports batch run activity as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/jeranaias/batchrun/internal/tasks"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "batchrun"

// Exporter implements the tasks reporter interfaces on top of Prometheus
// collectors. Its methods are safe to call from worker goroutines. A nil
// *Exporter discards everything.
type Exporter struct {
	tasksStarted  prom.Counter
	tasksFinished *prom.CounterVec
	tasksNotRun   prom.Counter
	taskDuration  *prom.HistogramVec
	runsTotal     *prom.CounterVec

	queueDepth  prom.Gauge
	executing   prom.Gauge
	workers     prom.Gauge
	parallelism prom.Gauge
}

var (
	_ tasks.Reporter         = (*Exporter)(nil)
	_ tasks.NotRunReporter   = (*Exporter)(nil)
	_ tasks.RunReporter      = (*Exporter)(nil)
	_ tasks.RunStartReporter = (*Exporter)(nil)
)

// NewExporter creates the collectors and registers them with reg (the
// default registerer when nil). Registering twice reuses the first set.
func NewExporter(namespace string, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	started := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_started_total",
		Help:      "Tasks whose process was launched or attempted.",
	})
	finished := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_finished_total",
		Help:      "Tasks finished, by outcome.",
	}, []string{"outcome"})
	notRun := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_not_run_total",
		Help:      "Tasks left queued when a run was stopped.",
	})
	duration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task process run time in seconds.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"outcome"})
	runs := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Runs finished, by how they ended.",
	}, []string{"end"})
	queueDepth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks queued and not yet started.",
	})
	executing := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_executing",
		Help:      "Tasks whose process is running.",
	})
	workers := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "workers",
		Help:      "Live workers in the current run.",
	})
	parallelism := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "parallelism",
		Help:      "Worker count of the current run.",
	})

	var err error
	if started, err = registerCollector(reg, started); err != nil {
		return nil, err
	}
	if finished, err = registerCollector(reg, finished); err != nil {
		return nil, err
	}
	if notRun, err = registerCollector(reg, notRun); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}
	if runs, err = registerCollector(reg, runs); err != nil {
		return nil, err
	}
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if executing, err = registerCollector(reg, executing); err != nil {
		return nil, err
	}
	if workers, err = registerCollector(reg, workers); err != nil {
		return nil, err
	}
	if parallelism, err = registerCollector(reg, parallelism); err != nil {
		return nil, err
	}

	return &Exporter{
		tasksStarted:  started,
		tasksFinished: finished,
		tasksNotRun:   notRun,
		taskDuration:  duration,
		runsTotal:     runs,
		queueDepth:    queueDepth,
		executing:     executing,
		workers:       workers,
		parallelism:   parallelism,
	}, nil
}

func (m *Exporter) TaskStarted(tasks.Task, int) {
	if m == nil {
		return
	}
	m.tasksStarted.Inc()
}

func (m *Exporter) TaskFinished(res tasks.Result) {
	if m == nil {
		return
	}
	outcome := res.Outcome.Kind.String()
	m.tasksFinished.WithLabelValues(outcome).Inc()
	m.taskDuration.WithLabelValues(outcome).Observe(res.Duration().Seconds())
}

func (m *Exporter) TaskNotRun(tasks.Task) {
	if m == nil {
		return
	}
	m.tasksNotRun.Inc()
}

func (m *Exporter) RunStarted(stats tasks.Stats) {
	m.Observe(stats)
}

func (m *Exporter) RunFinished(stats tasks.Stats) {
	if m == nil {
		return
	}
	end := "completed"
	if stats.StopRequested {
		end = "stopped"
	}
	m.runsTotal.WithLabelValues(end).Inc()
	m.Observe(stats)
}

// Observe sets the gauges from an engine snapshot.
func (m *Exporter) Observe(stats tasks.Stats) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(stats.Pending))
	m.executing.Set(float64(stats.Executing))
	m.workers.Set(float64(stats.Workers))
	m.parallelism.Set(float64(stats.Parallelism))
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
