package crawl

import "fmt"

// ErrorKind classifies failures so the API boundary can map them to business
// codes without string matching.
type ErrorKind string

// Failure kinds surfaced by the scraping subsystems.
const (
	KindSetupFailed     ErrorKind = "setup_failed"
	KindBrowserNotFound ErrorKind = "browser_not_found"
	KindAuthRequired    ErrorKind = "auth_required"
	KindAuthExpired     ErrorKind = "auth_expired"
	KindCrawlFailed     ErrorKind = "crawl_failed"
	KindTimeout         ErrorKind = "timeout"
	KindExtractFailed   ErrorKind = "extract_failed"
	KindLinkNotFound    ErrorKind = "link_not_found"
	KindUnexpected      ErrorKind = "unexpected"
)

// Error is a typed failure carrying its kind and a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed Error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a typed Error around a cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
