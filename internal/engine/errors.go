package engine

import "errors"

// Sentinel errors, mirroring the teacher's pre-allocated error-variable
// style (http11/errors.go) rather than ad hoc fmt.Errorf for control-
// flow-relevant conditions.
var (
	// ErrParser indicates the response could not be parsed as a valid
	// HTTP/1.1 status line or header block.
	ErrParser = errors.New("engine: invalid HTTP response")

	// ErrShortStatusLine indicates the status code is below 100, the
	// spec §4.3 threshold for counting a parser error.
	ErrShortStatusLine = errors.New("engine: status line below 100")
)
