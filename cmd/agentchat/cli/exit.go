// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError requests a non-zero exit without another error line. The
// command has already written its own output; "send" uses it when the
// agent reports an error event.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this method to tell
// a reported failure from an unexpected error.
func (e *ExitError) ExitCode() int {
	return e.Code
}
