package model

import (
	"fmt"

	"golang.org/x/xerrors"
)

type ErrorKind string

const (
	DecodeError  ErrorKind = "decode"
	ScoringError ErrorKind = "scoring"
	FileIOError  ErrorKind = "file_io"
	UnknownLabel ErrorKind = "unknown_label"
)

// Sentinels for errors.Is. They match any SegmentError of the same kind.
var (
	ErrDecode       = &SegmentError{Kind: DecodeError}
	ErrScoring      = &SegmentError{Kind: ScoringError}
	ErrFileIO       = &SegmentError{Kind: FileIOError}
	ErrUnknownLabel = &SegmentError{Kind: UnknownLabel}
)

// SegmentError is a request-fatal failure of one of the segmentation stages.
type SegmentError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *SegmentError {
	return &SegmentError{Kind: kind, Op: op, Err: err}
}

func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *SegmentError {
	return &SegmentError{Kind: kind, Op: op, Err: xerrors.Errorf(format, args...)}
}

func (e *SegmentError) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

func (e *SegmentError) Is(target error) bool {
	t, ok := target.(*SegmentError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
