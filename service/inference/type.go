package inference

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/lgr"
)

// Tensor is a dense float32 tensor in row-major NCHW order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func NewTensor(shape ...int64) Tensor {
	return Tensor{Shape: shape, Data: make([]float32, Elements(shape))}
}

func Elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t Tensor) Valid() bool {
	return len(t.Shape) > 0 && Elements(t.Shape) == int64(len(t.Data))
}

// IService scores one NCHW image tensor and returns per-class logits of
// shape [1, C, H, W]. Implementations serialize access to native sessions.
type IService interface {
	Score(ctx context.Context, input Tensor) (Tensor, error)
	Name() string
	Close()
}

type Factory func(cfgSvc config.IService) (IService, error)

var backends = map[string]Factory{}

func RegisterBackend(name string, factory Factory) {
	if _, ok := backends[name]; ok {
		lgr.Logger.Warn("scorer backend already registered", slog.String("name", name))
		return
	}
	backends[name] = factory
}

func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the backend the configuration selects.
func New(cfgSvc config.IService) (IService, error) {
	factory, ok := backends[cfgSvc.GetScorerBackend()]
	if !ok {
		return nil, xerrors.Errorf("scorer backend %q not registered (have %v)", cfgSvc.GetScorerBackend(), Backends())
	}
	return factory(cfgSvc)
}
