package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks transport failures and non-success HTTP statuses.
	ErrNetwork = errors.New("analytics network error")
	// ErrDecode marks responses that are not a well-formed NDVI series.
	ErrDecode = errors.New("analytics decode error")
)

// FailureKind classifies a failed analytics request.
type FailureKind int

const (
	NetworkError FailureKind = iota + 1
	DecodeError
)

func (k FailureKind) String() string {
	switch k {
	case NetworkError:
		return "network_error"
	case DecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Failure is the typed error delivered for a failed request. It matches both
// its kind sentinel and the underlying cause with errors.Is.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch f.Kind {
	case NetworkError:
		errs = append(errs, ErrNetwork)
	case DecodeError:
		errs = append(errs, ErrDecode)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// KindOf returns the failure kind carried by err, or 0 when err is not a
// *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
