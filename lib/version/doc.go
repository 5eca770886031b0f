// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the agentchat binary.
//
// Three variables are injected at build time with -ldflags -X:
//
//   - [GitCommit]: short git SHA of the build
//   - [GitDirty]: "true" if the tree had uncommitted changes
//   - [BuildTime]: UTC timestamp of the build
//
// [Version] is set by hand for releases. Development builds and tests
// see "unknown" and "0.1.0-dev".
//
//	go build -ldflags "-X github.com/bureau-foundation/agentchat/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/agentchat
package version
