// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package batch holds the user's list of scripts and folds run events back
// into it.
//
// The list owns paths, arguments and per-entry status. A run gets task values
// from StartBacklog or Task; status comes back through Apply, fed from a
// tasks.Inbox on the owner's goroutine.
package batch
