// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for agentchat.
//
// Configuration is loaded from a single file specified by either the
// AGENTCHAT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Without a file,
// callers start from [Default] and apply command-line flags.
//
// Files are YAML. Names ending in .json or .jsonc are read as JSON with
// comments and trailing commas allowed; since JSON is a subset of YAML
// both go through the same decoder and accept the same keys.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without its own section
// logs JSON.
//
// String fields that name endpoints or credentials support ${VAR} and
// ${VAR:-default} expansion, so tokens can stay in the environment:
//
//	server:
//	  base_url: https://agents.example.com/api
//	  token: ${AGENTCHAT_TOKEN}
//
// This package depends on no other agentchat packages.
package config
