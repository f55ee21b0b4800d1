package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/khaledhikmat/vs-segment/model"
)

// IService remembers image results by content key so an identical upload can
// reuse the artifacts of an earlier request.
type IService interface {
	Get(ctx context.Context, key string) (model.ImageResult, bool, error)
	Put(ctx context.Context, key string, result model.ImageResult, ttl time.Duration) error
	Close() error
}

// Key identifies an image transform: the upload bytes and everything that
// changes the output for them.
func Key(data []byte, height, width int, modelPath string) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%dx%d|%s", height, width, modelPath)
	return "segment:image:" + hex.EncodeToString(h.Sum(nil))
}
