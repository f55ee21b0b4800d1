package inference

import (
	"context"
	"math"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/service/config"
)

func init() {
	RegisterBackend(config.FakeBackend, func(cfgSvc config.IService) (IService, error) {
		return NewFake(cfgSvc.GetModelInfo().Classes), nil
	})
}

type fakeService struct {
	classes int
}

// NewFake returns a deterministic scorer: each pixel scores highest for the
// class whose index is closest to the pixel brightness spread over the classes.
func NewFake(classes int) IService {
	return &fakeService{
		classes: classes,
	}
}

func (svc *fakeService) Name() string {
	return config.FakeBackend
}

func (svc *fakeService) Score(ctx context.Context, input Tensor) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}

	if !input.Valid() || len(input.Shape) != 4 || input.Shape[0] != 1 {
		return Tensor{}, xerrors.Errorf("fake scorer: unexpected input shape %v", input.Shape)
	}

	channels, h, w := input.Shape[1], input.Shape[2], input.Shape[3]
	plane := h * w
	out := NewTensor(1, int64(svc.classes), h, w)

	for p := int64(0); p < plane; p++ {
		var sum float32
		for c := int64(0); c < channels; c++ {
			sum += input.Data[c*plane+p]
		}
		brightness := float64(sum) / float64(channels)

		for k := 0; k < svc.classes; k++ {
			target := 0.0
			if svc.classes > 1 {
				target = float64(k) / float64(svc.classes-1)
			}
			out.Data[int64(k)*plane+p] = float32(-math.Abs(brightness - target))
		}
	}

	return out, nil
}

func (svc *fakeService) Close() {
}
