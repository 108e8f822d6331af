package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCancelled marks a user-initiated abort. It is a distinct outcome, not a failure.
var ErrCancelled = errors.New("download cancelled")

// ErrorKind classifies download failures.
type ErrorKind int

const (
	NetworkError ErrorKind = iota + 1
	HTTPStatusError
	FilesystemError
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkError:
		return "network error"
	case HTTPStatusError:
		return "http status error"
	case FilesystemError:
		return "filesystem error"
	case IOError:
		return "i/o error"
	default:
		return "unknown error"
	}
}

// DownloadError is a classified, terminal download failure.
type DownloadError struct {
	Kind       ErrorKind
	StatusCode int // set for HTTPStatusError
	Detail     string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Kind == HTTPStatusError {
		return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	default:
		return e.Kind.String()
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and a short description.
func NewError(kind ErrorKind, detail string, err error) *DownloadError {
	return &DownloadError{Kind: kind, Detail: detail, Err: err}
}

// NewStatusError reports a non-success HTTP status.
func NewStatusError(code int) *DownloadError {
	return &DownloadError{Kind: HTTPStatusError, StatusCode: code}
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var de *DownloadError
	if errors.As(err, &de) && de.Kind == HTTPStatusError {
		return de.StatusCode
	}
	return 0
}
