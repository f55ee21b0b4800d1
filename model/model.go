package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

type RequestKind string

const (
	RequestKindImage RequestKind = "image"
	RequestKindVideo RequestKind = "video"
)

// Workspace is the request-scoped scratch directory every artifact of a
// request is written to.
type Workspace struct {
	ID string `json:"id"`
	// Absolute (or working-dir relative) directory on disk
	Dir string `json:"dir"`
	// Path of Dir relative to the static folder, slash separated
	Prefix string `json:"prefix"`
}

type ImageResult struct {
	RequestID     string `json:"request_id"`
	OriginalImage string `json:"original_image"`
	Result        string `json:"result"`
	StoredResult  string `json:"stored_result,omitempty"`
	Cached        bool   `json:"cached,omitempty"`
}

type VideoResult struct {
	RequestID     string `json:"request_id"`
	OriginalVideo string `json:"original_video"`
	Result        string `json:"result"`
	StoredResult  string `json:"stored_result,omitempty"`
	Frames        int    `json:"frames"`
}

type ModelInfo struct {
	EncoderName   string `json:"encoder_name"`
	EncoderWeight string `json:"encoder_weight"`
	InChannels    int    `json:"in_channels"`
	Classes       int    `json:"classes"`
	Height        int    `json:"height"`
	Width         int    `json:"width"`
	Backend       string `json:"backend"`
}

type RequestStats struct {
	ID           string      `json:"id"`
	Kind         RequestKind `json:"kind"`
	Frames       int         `json:"frames"`
	Errors       int         `json:"errors"`
	Cached       bool        `json:"cached"`
	DurationSecs float64     `json:"durationSecs"`
	Timestamp    int64       `json:"timestamp"`
}

type JanitorStats struct {
	Sweeps    int   `json:"sweeps"`
	Removed   int   `json:"removed"`
	Errors    int   `json:"errors"`
	Uptime    int64 `json:"uptime"`
	Timestamp int64 `json:"timestamp"`
}

type ServerStats struct {
	TotalImageRequests int64   `json:"imageRequests"`
	TotalVideoRequests int64   `json:"videoRequests"`
	TotalFrames        int64   `json:"frames"`
	TotalErrors        int64   `json:"errors"`
	Uptime             int64   `json:"uptime"`
	AvgRequestsPerMin  float64 `json:"avgRequestsPerMin"`
	Timestamp          int64   `json:"timestamp"`
}
