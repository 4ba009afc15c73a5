// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package render records and submits effect draws.
//
// A [Pass] collects [Command] values, each a single draw with its
// pipeline, vertex buffer, and resource bindings. Uniform data for the
// pass lives in a [TransientBuffer], a per-pass scratch arena that is
// uploaded once before encoding and reclaimed when the pass resets.
// Appending a command is all-or-nothing: a draw that fails during
// binding leaves the pass's command list untouched.
package render
