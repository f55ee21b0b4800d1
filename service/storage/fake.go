package storage

import (
	"context"
	"sync"

	"github.com/khaledhikmat/vs-segment/service/config"
)

// NewFake keeps workspaces locally and records mirrored keys in memory.
func NewFake(cfgsvc config.IService) IService {
	return NewLocal(cfgsvc, &FakeMirror{})
}

type FakeMirror struct {
	mu   sync.Mutex
	Keys []string
}

func (m *FakeMirror) Put(_ context.Context, key string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, key)
	return "fake://" + key, nil
}
