// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by batchrun's packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// Display:
//   - TruncateWidth, TruncateLeft: Column-aware truncation for list rows
//   - PadRight, StringWidth: Column alignment
//
// # Usage
//
//	row := util.PadRight(util.TruncateLeft(path, 40), 40)
//	err := util.AtomicWriteFile(path, data, 0644)
package util
