package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/arloliu/switchyard/proxy"
)

// RecordingExecutor is a proxy.Executor that records requests and answers
// them with a configurable responder.
type RecordingExecutor struct {
	mu        sync.Mutex
	requests  []proxy.Request
	responder func(proxy.Request) (*proxy.Response, error)
	blocked   chan struct{}
	nextID    int64
}

// Compile-time assertion that RecordingExecutor implements proxy.Executor.
var _ proxy.Executor = (*RecordingExecutor)(nil)

// NewRecordingExecutor creates an executor answering every statement with
// one affected row and an increasing LastInsertID.
func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{}
}

// Respond sets the responder used for subsequent requests.
func (e *RecordingExecutor) Respond(fn func(proxy.Request) (*proxy.Response, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responder = fn
}

// Block makes requests wait until release is called or their context ends.
func (e *RecordingExecutor) Block() (release func()) {
	ch := make(chan struct{})
	e.mu.Lock()
	e.blocked = ch
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// Requests returns the recorded requests.
func (e *RecordingExecutor) Requests() []proxy.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.requests)
}

// Execute records req and returns the responder's answer.
func (e *RecordingExecutor) Execute(ctx context.Context, req proxy.Request) (*proxy.Response, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	responder := e.responder
	blocked := e.blocked
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	if blocked != nil {
		select {
		case <-blocked:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if responder != nil {
		return responder(req)
	}

	return &proxy.Response{AffectedRows: 1, LastInsertID: id}, nil
}
