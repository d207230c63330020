package notemd

import (
	"errors"
	"fmt"
)

// Wrap wraps an error by prepending additional text.
// The text can contain formatting parameters.
func Wrap(err error, msg string, v ...interface{}) error {
	msg = fmt.Sprintf(msg, v...)
	return fmt.Errorf("%v: %w", msg, err)
}

type notFound struct {
	message string
}

// NewNotFound creates a new "not found" error.
func NewNotFound(s string, v ...interface{}) error {
	return notFound{fmt.Sprintf("not found: %v", fmt.Sprintf(s, v...))}
}

func (n notFound) Error() string {
	return n.message
}

// IsNotFound checks if the given error is a "not found" error.
func IsNotFound(err error) bool {
	var n notFound
	return errors.As(err, &n)
}

type unauthenticated struct {
	message string
}

// NewUnauthenticated creates an error for a failed or missing credential.
func NewUnauthenticated(s string, v ...interface{}) error {
	return unauthenticated{fmt.Sprintf("unauthenticated: %v", fmt.Sprintf(s, v...))}
}

func (u unauthenticated) Error() string {
	return u.message
}

// IsUnauthenticated checks if the given error is a credential failure.
func IsUnauthenticated(err error) bool {
	var u unauthenticated
	return errors.As(err, &u)
}

type transportExhausted struct {
	message  string
	attempts int
}

// NewTransportExhausted creates the error for a request that failed
// after using up its retry budget.
func NewTransportExhausted(attempts int, s string, v ...interface{}) error {
	return transportExhausted{
		message:  fmt.Sprintf(s, v...),
		attempts: attempts,
	}
}

func (t transportExhausted) Error() string {
	return fmt.Sprintf("transport exhausted after %v attempts: %v", t.attempts, t.message)
}

// IsTransportExhausted checks if the given error means the retry budget
// was used up without a successful response.
func IsTransportExhausted(err error) bool {
	var t transportExhausted
	return errors.As(err, &t)
}

type malformedHierarchy struct {
	message   string
	sectionID string
}

// NewMalformedHierarchy creates the error for inconsistent parent
// references within one section.
func NewMalformedHierarchy(sectionID, s string, v ...interface{}) error {
	return malformedHierarchy{
		message:   fmt.Sprintf(s, v...),
		sectionID: sectionID,
	}
}

func (m malformedHierarchy) Error() string {
	return fmt.Sprintf("malformed hierarchy in section %q: %v", m.sectionID, m.message)
}

// IsMalformedHierarchy checks if the given error is a hierarchy inconsistency.
func IsMalformedHierarchy(err error) bool {
	var m malformedHierarchy
	return errors.As(err, &m)
}

type contentParseError struct {
	message string
	pageID  string
}

// NewContentParseError creates the error for a page whose rich-content
// document cannot be parsed.
func NewContentParseError(pageID string, cause error) error {
	return contentParseError{
		message: cause.Error(),
		pageID:  pageID,
	}
}

func (c contentParseError) Error() string {
	return fmt.Sprintf("cannot parse content of page %q: %v", c.pageID, c.message)
}

// IsContentParseError checks if the given error is a per-page parse failure.
func IsContentParseError(err error) bool {
	var c contentParseError
	return errors.As(err, &c)
}

type assetUnresolved struct {
	message string
	url     string
}

// NewAssetUnresolved creates the (non-fatal) error for an asset that
// could not be fetched after retries.
func NewAssetUnresolved(url string, cause error) error {
	return assetUnresolved{
		message: cause.Error(),
		url:     url,
	}
}

func (a assetUnresolved) Error() string {
	return fmt.Sprintf("asset %q unresolved: %v", a.url, a.message)
}

// IsAssetUnresolved checks if the given error is a per-asset fetch failure.
func IsAssetUnresolved(err error) bool {
	var a assetUnresolved
	return errors.As(err, &a)
}
