package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDependsOnEverythingThatChangesOutput(t *testing.T) {
	data := []byte("image bytes")
	base := Key(data, 512, 1024, "./models/unet.onnx")

	assert.Equal(t, base, Key(data, 512, 1024, "./models/unet.onnx"))
	assert.NotEqual(t, base, Key([]byte("other"), 512, 1024, "./models/unet.onnx"))
	assert.NotEqual(t, base, Key(data, 256, 1024, "./models/unet.onnx"))
	assert.NotEqual(t, base, Key(data, 512, 1024, "./models/other.onnx"))
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	svc := &memoryService{entries: map[string]memoryEntry{}, now: func() time.Time { return now }}
	ctx := context.Background()

	res := model.ImageResult{RequestID: "r1", Result: "/get_file/tmp/r1/output.png"}
	require.NoError(t, svc.Put(ctx, "k", res, time.Minute))

	got, ok, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res, got)

	now = now.Add(2 * time.Minute)
	_, ok, err = svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryMiss(t *testing.T) {
	svc := NewMemory()
	defer svc.Close()

	_, ok, err := svc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Runs only against a live server: REDIS_TEST_ADDRESS=localhost:6379
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS not set")
	}

	svc := NewRedis(addr)
	defer svc.Close()
	ctx := context.Background()

	key := "segment:test:" + uuid.NewString()
	res := model.ImageResult{RequestID: "r2", OriginalImage: "/get_file/tmp/r2/tmp.png"}
	require.NoError(t, svc.Put(ctx, key, res, time.Minute))

	got, ok, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res, got)
}
