// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

const (
	// endpointMessageStream accepts a message and replies with an
	// event stream.
	endpointMessageStream = "/agent/message/stream"
)
