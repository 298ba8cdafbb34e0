package discovery

import "errors"

// Error taxonomy shared by every stage. Wrap with fmt.Errorf("...: %w", Err*)
// and test with errors.Is.
var (
	// ErrTransport covers timeouts, connection failures and non-2xx statuses.
	ErrTransport = errors.New("transport error")
	// ErrParse covers malformed HTML, JSON or structured data.
	ErrParse = errors.New("parse error")
	// ErrDataShape covers missing or malformed fields in provider or page data.
	ErrDataShape = errors.New("data shape error")
	// ErrPersistence covers constraint violations and lost connections.
	ErrPersistence = errors.New("persistence error")
)
