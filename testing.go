package ankigen

import (
	"context"
	"sync"
)

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

func (f InvokerFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// StaticInvoker is an Invoker returning canned completions, for tests and dry
// runs. Responses are consumed in order; when exhausted (or when only
// Response is set) every call returns Response. It records every request it
// receives and is safe for concurrent use.
type StaticInvoker struct {
	Response  string
	Responses []string
	Usage     TokenStats
	Err       error

	mu    sync.Mutex
	next  int
	calls []CompletionRequest
}

func (s *StaticInvoker) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if s.Err != nil {
		return nil, s.Err
	}

	content := s.Response
	if s.next < len(s.Responses) {
		content = s.Responses[s.next]
		s.next++
	}
	return &Completion{Content: content, Usage: s.Usage}, nil
}

// Calls returns a copy of every request received so far.
func (s *StaticInvoker) Calls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRequest, len(s.calls))
	copy(out, s.calls)
	return out
}
