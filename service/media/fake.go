package media

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"
)

// FakeService keeps videos in memory. Sources are registered with AddVideo;
// sinks record the frames they receive and leave a placeholder file on disk.
type FakeService struct {
	mu      sync.Mutex
	sources map[string]func(i int) image.Image
	lengths map[string]int
	written map[string][]image.Image
}

func NewFake() *FakeService {
	return &FakeService{
		sources: map[string]func(i int) image.Image{},
		lengths: map[string]int{},
		written: map[string][]image.Image{},
	}
}

// AddVideo registers a video of n frames produced by gen.
func (svc *FakeService) AddVideo(path string, n int, gen func(i int) image.Image) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sources[filepath.Clean(path)] = gen
	svc.lengths[filepath.Clean(path)] = n
}

// SolidFrames returns a generator of w x h frames filled with c.
func SolidFrames(w, h int, c color.Color) func(int) image.Image {
	return func(int) image.Image {
		return imaging.New(w, h, c)
	}
}

// Written returns the frames a sink created at path received.
func (svc *FakeService) Written(path string) []image.Image {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.written[filepath.Clean(path)]
}

func (svc *FakeService) OpenVideo(path string) (Source, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	gen, ok := svc.sources[filepath.Clean(path)]
	if !ok {
		return nil, xerrors.Errorf("video %s could not be opened", path)
	}
	return &fakeSource{gen: gen, n: svc.lengths[filepath.Clean(path)]}, nil
}

func (svc *FakeService) CreateVideo(path, codec string, _ float64, width, height int) (Sink, error) {
	if len(codec) != 4 {
		return nil, xerrors.Errorf("invalid fourcc %q", codec)
	}

	if err := os.WriteFile(path, []byte(codec), 0644); err != nil {
		return nil, xerrors.Errorf("error creating video writer: %w", err)
	}
	return &fakeSink{svc: svc, path: filepath.Clean(path), width: width, height: height}, nil
}

func (svc *FakeService) ReadImage(path string) (image.Image, error) {
	return readImage(path)
}

func (svc *FakeService) WriteImage(path string, img image.Image) error {
	return writeImage(path, img)
}

type fakeSource struct {
	gen  func(i int) image.Image
	n    int
	next int
}

func (src *fakeSource) Read() (image.Image, error) {
	if src.next >= src.n {
		return nil, EOF
	}
	img := src.gen(src.next)
	src.next++
	return img, nil
}

func (src *fakeSource) Close() error {
	return nil
}

type fakeSink struct {
	svc    *FakeService
	path   string
	width  int
	height int
}

func (snk *fakeSink) Write(img image.Image) error {
	frame := Fit(img, snk.width, snk.height)

	snk.svc.mu.Lock()
	defer snk.svc.mu.Unlock()
	snk.svc.written[snk.path] = append(snk.svc.written[snk.path], frame)
	return nil
}

func (snk *fakeSink) Close() error {
	return nil
}
