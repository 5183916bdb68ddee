// Package chatclient is the client half of the chat application: model
// selection, conversation state, and request dispatch to the chat server.
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrEmptyInput         = errors.New("please provide a message or a file")
	ErrCredentialRequired = errors.New("please submit your API key first")
	ErrEmptyCredential    = errors.New("please enter an API key")
	ErrCancelled          = errors.New("request cancelled")
	ErrUpstreamTimeout    = errors.New("request timed out")
	ErrRequestInFlight    = errors.New("a request is already in flight")
	ErrNotSignedIn        = errors.New("not signed in")
)

// UpstreamHTTPError is a non-2xx reply from the chat server.
type UpstreamHTTPError struct {
	Status  int
	Message string
}

func (e *UpstreamHTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.Status, e.Message)
}

// Request is one outstanding send. Requests are compared by identity.
type Request struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Request) Context() context.Context {
	return r.ctx
}

// InFlight holds at most one outstanding request.
type InFlight struct {
	mu      sync.Mutex
	current *Request
}

func (f *InFlight) Begin(parent context.Context) (*Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		return nil, ErrRequestInFlight
	}
	ctx, cancel := context.WithCancel(parent)
	f.current = &Request{ctx: ctx, cancel: cancel}
	return f.current, nil
}

// Cancel aborts the current request and empties the slot. It reports whether
// there was anything to cancel.
func (f *InFlight) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return false
	}
	f.current.cancel()
	f.current = nil
	return true
}

func (f *InFlight) IsCurrent(req *Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return req != nil && f.current == req
}

// Apply runs fn while req is still current, holding the slot lock so a
// concurrent Cancel cannot land in between. It reports whether fn ran.
func (f *InFlight) Apply(req *Request, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req == nil || f.current != req {
		return false
	}
	fn()
	return true
}

// Finish releases req. It is a no-op when req is no longer current.
func (f *InFlight) Finish(req *Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req.cancel()
	if f.current == req {
		f.current = nil
	}
}

func (f *InFlight) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current != nil
}
