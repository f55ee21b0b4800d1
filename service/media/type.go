package media

import (
	"image"
	"io"
)

// Source yields decoded frames in order. Read returns io.EOF once the source
// is exhausted.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Sink accepts frames of any size; implementations resize to the size the
// sink was created with.
type Sink interface {
	Write(img image.Image) error
	Close() error
}

type IService interface {
	OpenVideo(path string) (Source, error)
	CreateVideo(path, codec string, fps float64, width, height int) (Sink, error)
	ReadImage(path string) (image.Image, error)
	WriteImage(path string, img image.Image) error
}

var EOF = io.EOF
