package pipeline

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/khaledhikmat/vs-segment/labels"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/inference"
	"github.com/khaledhikmat/vs-segment/service/metrics"
	"github.com/khaledhikmat/vs-segment/service/tracing"
)

// Mask holds one coarse group per pixel, row-major.
type Mask struct {
	Height int
	Width  int
	Groups []uint8
}

func (m Mask) At(x, y int) uint8 {
	return m.Groups[y*m.Width+x]
}

// Transformer turns a decoded frame into its color-coded segmentation at a
// fixed resolution.
type Transformer struct {
	scorer inference.IService
	height int
	width  int
	colors [labels.Groups]color.RGBA
}

func NewTransformer(scorer inference.IService, height, width int) (*Transformer, error) {
	if height <= 0 || width <= 0 {
		return nil, model.Errorf(model.DecodeError, "new transformer", "invalid size %dx%d", height, width)
	}

	colors, err := labels.ColorTable()
	if err != nil {
		return nil, err
	}

	return &Transformer{
		scorer: scorer,
		height: height,
		width:  width,
		colors: colors,
	}, nil
}

func (t *Transformer) Transform(ctx context.Context, img image.Image) (*image.RGBA, error) {
	ctx, span := tracing.Tracer().Start(ctx, "transform")
	defer span.End()
	span.SetAttributes(
		attribute.Int("height", t.height),
		attribute.Int("width", t.width),
		attribute.String("scorer", t.scorer.Name()),
	)

	begin := time.Now()
	out, err := t.transform(ctx, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(begin).Seconds())
	metrics.FramesTransformedTotal.Inc()
	return out, nil
}

func (t *Transformer) transform(ctx context.Context, img image.Image) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, model.Errorf(model.DecodeError, "transform", "empty image")
	}

	input := ToTensor(Resize(img, t.height, t.width))

	output, err := t.scorer.Score(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, model.NewError(model.ScoringError, "score", err)
	}

	mask, err := ArgMax(output, t.height, t.width)
	if err != nil {
		return nil, err
	}

	return t.Colorize(mask)
}

// Resize scales img to exactly width x height with bilinear filtering.
func Resize(img image.Image, height, width int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Linear)
}

// ToTensor lays the RGB channels out as a [1, 3, H, W] tensor scaled to [0, 1].
// Alpha is dropped without compositing.
func ToTensor(img *image.NRGBA) inference.Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	plane := h * w

	t := inference.NewTensor(1, 3, int64(h), int64(w))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := y*w + x
			t.Data[p] = float32(row[x*4]) / 255
			t.Data[plane+p] = float32(row[x*4+1]) / 255
			t.Data[2*plane+p] = float32(row[x*4+2]) / 255
		}
	}
	return t
}

// ArgMax picks the highest scoring class per pixel. Ties go to the lowest
// class index. NaN ranks above every number and the first NaN wins.
func ArgMax(scores inference.Tensor, height, width int) (Mask, error) {
	s := scores.Shape
	if len(s) != 4 || s[0] != 1 || s[1] < 1 || s[1] > labels.Groups ||
		s[2] != int64(height) || s[3] != int64(width) || !scores.Valid() {
		return Mask{}, model.Errorf(model.ScoringError, "argmax",
			"scorer output shape %v does not match [1, 1..%d, %d, %d] (%d values)",
			s, labels.Groups, height, width, len(scores.Data))
	}

	classes := int(s[1])
	plane := height * width
	mask := Mask{Height: height, Width: width, Groups: make([]uint8, plane)}

	for p := 0; p < plane; p++ {
		best := 0
		top := scores.Data[p]
		for c := 1; c < classes && !isNaN(top); c++ {
			if v := scores.Data[c*plane+p]; v > top || isNaN(v) {
				best, top = c, v
			}
		}
		mask.Groups[p] = uint8(best)
	}
	return mask, nil
}

func isNaN(v float32) bool {
	return math.IsNaN(float64(v))
}

// Colorize paints every pixel with the color of its group's representative
// raw id.
func (t *Transformer) Colorize(mask Mask) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			g := int(mask.At(x, y))
			if g >= len(t.colors) {
				return nil, model.Errorf(model.UnknownLabel, "colorize", "class %d has no color", g)
			}
			out.SetRGBA(x, y, t.colors[g])
		}
	}
	return out, nil
}
