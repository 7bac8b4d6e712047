// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import "sync/atomic"

// StopSignal is a write-once flag meaning "start nothing new". Each run gets a
// fresh signal; once set it stays set for that run.
type StopSignal struct {
	set atomic.Bool
}

// Request sets the flag. It returns true only for the call that set it.
func (s *StopSignal) Request() bool {
	return s.set.CompareAndSwap(false, true)
}

// Requested reports whether the flag is set. It never blocks.
func (s *StopSignal) Requested() bool {
	return s.set.Load()
}
