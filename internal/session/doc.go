// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties the batch list to the task engine.
//
// A Session owns one batch.List and one tasks.Engine and is the only place
// where engine events are folded back into the list. Every front end (the TUI,
// the headless runner, the console) drives a Session instead of the engine.
//
// # Event flow
//
// Workers report into an unbounded inbox. A single loop goroutine applies each
// event to the list, writes it to the run journal, updates the status line and
// then re-posts it on Events(), so a consumer that sees an event also sees the
// list already updated for it.
//
// # Usage
//
//	s, err := session.New(cfg, session.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.Add(paths, cfg.Runner.DefaultArgs)
//	if err := s.Start(); err != nil {
//	    return err
//	}
//	s.Wait(ctx)
//	fmt.Println(s.Message())
package session
