package media

import (
	"image"
	"log/slog"

	"github.com/khaledhikmat/vs-segment/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type opencvService struct {
}

// NewOpenCV decodes and encodes video containers through OpenCV.
func NewOpenCV() IService {
	return &opencvService{}
}

func (svc *opencvService) OpenVideo(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, xerrors.Errorf("error opening video %s: %w", path, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, xerrors.Errorf("video %s could not be opened", path)
	}

	return &opencvSource{capture: capture}, nil
}

func (svc *opencvService) CreateVideo(path, codec string, fps float64, width, height int) (Sink, error) {
	writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, xerrors.Errorf("error creating video writer: %w", err)
	}

	if !writer.IsOpened() {
		writer.Close()
		return nil, xerrors.Errorf("video writer for %s (%s) could not be opened", path, codec)
	}

	return &opencvSink{writer: writer, width: width, height: height}, nil
}

func (svc *opencvService) ReadImage(path string) (image.Image, error) {
	return readImage(path)
}

func (svc *opencvService) WriteImage(path string, img image.Image) error {
	return writeImage(path, img)
}

type opencvSource struct {
	capture *gocv.VideoCapture
}

func (src *opencvSource) Read() (image.Image, error) {
	img := gocv.NewMat()
	defer img.Close() // Crucial to close the image to avoid memory leaks

	if ok := src.capture.Read(&img); !ok || img.Empty() {
		return nil, EOF
	}

	// ToImage converts the BGR mat into an RGBA image
	frame, err := img.ToImage()
	if err != nil {
		return nil, xerrors.Errorf("error converting frame: %w", err)
	}
	return frame, nil
}

func (src *opencvSource) Close() error {
	return src.capture.Close()
}

type opencvSink struct {
	writer *gocv.VideoWriter
	width  int
	height int
}

func (snk *opencvSink) Write(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(Fit(img, snk.width, snk.height))
	if err != nil {
		return xerrors.Errorf("error converting frame: %w", err)
	}
	defer mat.Close()

	if mat.Cols() != snk.width || mat.Rows() != snk.height {
		lgr.Logger.Warn(
			"frame dimensions do not match video dimensions, resizing frame",
			slog.Int("frame_cols", mat.Cols()),
			slog.Int("frame_rows", mat.Rows()),
			slog.Int("video_cols", snk.width),
			slog.Int("video_rows", snk.height),
		)

		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(mat, &resized, image.Pt(snk.width, snk.height), 0, 0, gocv.InterpolationLinear); err != nil {
			return xerrors.Errorf("error resizing frame: %w", err)
		}
		return snk.writer.Write(resized)
	}

	return snk.writer.Write(mat)
}

func (snk *opencvSink) Close() error {
	return snk.writer.Close()
}
