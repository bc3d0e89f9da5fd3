package store

import (
	"context"
	"sync"
)

// Memory keeps the text in memory.
type Memory struct {
	mu     sync.Mutex
	text   string
	digest string
	set    bool
	writes int
}

// NewMemory returns a store holding text.
func NewMemory(text string) *Memory {
	return &Memory{text: text, digest: Digest(text), set: true}
}

// ReadText returns the stored text or ErrNotFound when nothing was stored.
func (m *Memory) ReadText(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", ErrNotFound
	}
	return m.text, nil
}

// WriteText stores text unless it equals what is already stored.
func (m *Memory) WriteText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := Digest(text)
	if m.set && d == m.digest {
		return nil
	}
	m.text, m.digest, m.set = text, d, true
	m.writes++
	return nil
}

// Writes returns how many writes changed the stored text.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
