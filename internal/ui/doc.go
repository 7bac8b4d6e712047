// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the interactive batchrun front end, a Bubble Tea program
// driving a session.Session.
//
// Engine events reach the model through the session's Events channel and log
// lines through a LogSink; both are turned into messages by commands that
// re-arm themselves, so the model is only ever touched on the Bubble Tea
// goroutine.
package ui
