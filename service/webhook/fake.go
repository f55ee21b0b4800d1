package webhook

import (
	"context"
	"sync"
)

// FakeService records payloads instead of posting them.
type FakeService struct {
	mu       sync.Mutex
	Payloads []map[string]interface{}
}

func NewFake() *FakeService {
	return &FakeService{}
}

func (svc *FakeService) Post(_ context.Context, payload map[string]interface{}) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.Payloads = append(svc.Payloads, payload)
	return nil
}
