// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "strconv"

// ExitError requests a specific process exit code without an error
// message. main treats any error exposing ExitCode() as already
// reported: it exits with that code and prints nothing further.
//
// This is the mechanism behind query-style commands whose answer IS
// the exit code. "changegate check testCode && make test" relies on
// check returning &ExitError{Code: 3} when the signal is off; printing
// an error there would turn an expected answer into noise.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit code " + strconv.Itoa(e.Code)
}

// ExitCode reports the requested process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
