package errx

import (
	"sort"
	"sync"
)

// ErrorCode is a registered error kind. It satisfies error so that it can be
// used directly as an errors.Is target.
type ErrorCode struct {
	Code       string
	Type       Type
	HTTPStatus int
	Message    string
}

func (c *ErrorCode) Error() string {
	return c.Code + ": " + c.Message
}

// Registry holds the error codes of one package under a common prefix.
type Registry struct {
	prefix string
	mu     sync.RWMutex
	codes  map[string]*ErrorCode
}

// NewRegistry creates a registry whose codes are prefixed with prefix.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		codes:  make(map[string]*ErrorCode),
	}
}

// Register adds a code. A zero httpStatus falls back to the type's default.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	if httpStatus == 0 {
		httpStatus = errType.Status()
	}
	ec := &ErrorCode{
		Code:       r.prefix + "_" + code,
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}

	r.mu.Lock()
	r.codes[code] = ec
	r.mu.Unlock()
	return ec
}

// New creates an error for a registered code.
func (r *Registry) New(code *ErrorCode) *Error {
	return fromCode(code, nil)
}

// NewWithCause creates an error for a registered code wrapping cause.
func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	return fromCode(code, cause)
}

// Lookup returns a registered code by its unprefixed name.
func (r *Registry) Lookup(code string) (*ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.codes[code]
	return ec, ok
}

// Codes lists the registered codes sorted by name.
func (r *Registry) Codes() []*ErrorCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ErrorCode, 0, len(r.codes))
	for _, ec := range r.codes {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func fromCode(code *ErrorCode, cause error) *Error {
	return &Error{
		Code:       code.Code,
		Message:    code.Message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Err:        cause,
		code:       code,
	}
}
