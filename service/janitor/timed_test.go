package janitor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJanitor(t *testing.T, mutate func(*config.Settings)) (IService, storage.IService) {
	static := t.TempDir()
	cfg := config.NewHardCoded(func(s *config.Settings) {
		s.StaticFolder = static
		s.WorkspaceTTLMinutes = 60
		if mutate != nil {
			mutate(s)
		}
	})
	storageSvc := storage.NewFake(cfg)
	return NewTimed(context.Background(), cfg, storageSvc), storageSvc
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	svc, storageSvc := newTestJanitor(t, nil)

	old, err := storageSvc.NewWorkspace()
	require.NoError(t, err)
	fresh, err := storageSvc.NewWorkspace()
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Dir, past, past))

	removed, err := svc.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, old.Dir)
	assert.DirExists(t, fresh.Dir)
}

func TestSweepWithoutWorkspacesFolder(t *testing.T) {
	svc, _ := newTestJanitor(t, nil)

	removed, err := svc.Sweep(time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// shortCycle runs the janitor at intervals too short for the validated settings.
type shortCycle struct {
	config.IService
	interval time.Duration
	ttl      time.Duration
}

func (c shortCycle) GetJanitorInterval() time.Duration { return c.interval }
func (c shortCycle) GetWorkspaceTTL() time.Duration    { return c.ttl }

func TestSubscribeDeliversStats(t *testing.T) {
	cfg := config.NewHardCoded(func(s *config.Settings) {
		s.StaticFolder = t.TempDir()
	})
	storageSvc := storage.NewFake(cfg)
	svc := NewTimed(context.Background(), shortCycle{
		IService: cfg,
		interval: 10 * time.Millisecond,
		ttl:      time.Second,
	}, storageSvc)
	defer svc.Finalize()

	ws, err := storageSvc.NewWorkspace()
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(ws.Dir, past, past))

	stream, err := svc.Subscribe()
	require.NoError(t, err)

	_, err = svc.Subscribe()
	assert.Error(t, err, "second subscription must fail")

	select {
	case stats := <-stream:
		assert.GreaterOrEqual(t, stats.Sweeps, 1)
		assert.Equal(t, 1, stats.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("no janitor stats delivered")
	}

	require.NoError(t, svc.Unsubscribe())
	assert.Error(t, svc.Unsubscribe())
}
