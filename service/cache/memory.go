package cache

import (
	"context"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-segment/model"
)

type memoryEntry struct {
	result  model.ImageResult
	expires time.Time
}

type memoryService struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() IService {
	return &memoryService{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (svc *memoryService) Get(_ context.Context, key string) (model.ImageResult, bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	e, ok := svc.entries[key]
	if !ok {
		return model.ImageResult{}, false, nil
	}
	if !e.expires.IsZero() && svc.now().After(e.expires) {
		delete(svc.entries, key)
		return model.ImageResult{}, false, nil
	}
	return e.result, true, nil
}

func (svc *memoryService) Put(_ context.Context, key string, result model.ImageResult, ttl time.Duration) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	e := memoryEntry{result: result}
	if ttl > 0 {
		e.expires = svc.now().Add(ttl)
	}
	svc.entries[key] = e
	return nil
}

func (svc *memoryService) Close() error {
	return nil
}
