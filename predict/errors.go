package predict

import "fmt"

type ErrorKind int

const (
	BadRequest ErrorKind = iota
	ServiceUnavailable
	Internal
)

func (k ErrorKind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case ServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// RequestError is a failure of a single prediction request. It never
// affects the process or the loaded classifier.
type RequestError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *RequestError) Error() string {
	return e.Reason
}

func (e *RequestError) Unwrap() error { return e.Err }

func badRequest(format string, args ...interface{}) *RequestError {
	return &RequestError{Kind: BadRequest, Reason: fmt.Sprintf(format, args...)}
}
