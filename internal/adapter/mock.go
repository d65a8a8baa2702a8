package adapter

import (
	"context"
	"sync"
)

// Mock records payloads and returns scripted results. Intended for tests
// and local development.
type Mock struct {
	mu      sync.Mutex
	sent    []Payload
	results []*Result
	err     error
}

func NewMock() *Mock {
	return &Mock{}
}

// Queue appends a scripted result; once the script is exhausted every send
// succeeds.
func (m *Mock) Queue(results ...*Result) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
	return m
}

// Fail makes every send return err as a transport error.
func (m *Mock) Fail(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *Mock) Send(_ context.Context, p Payload) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, p)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > 0 {
		r := m.results[0]
		m.results = m.results[1:]
		return r, nil
	}
	return &Result{Success: true, MessageID: "mock-" + p.MessageID}, nil
}

// Sent returns a copy of all recorded payloads.
func (m *Mock) Sent() []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payload, len(m.sent))
	copy(out, m.sent)
	return out
}
