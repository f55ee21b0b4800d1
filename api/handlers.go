package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/metrics"
)

const uploadField = "file"

var errMissingUpload = xerrors.New("no file uploaded")

func (s *Server) uploadImage(c *gin.Context) {
	begin := time.Now()
	metrics.InFlightRequests.Inc()
	defer metrics.InFlightRequests.Dec()

	kind := string(model.RequestKindImage)

	upload, err := s.readUpload(c)
	if err != nil {
		s.fail(c, kind, begin, err, "")
		return
	}

	res, stats, err := pipeline.ProcessImage(c.Request.Context(), s.svcs, upload)
	if err != nil {
		stats.Errors++
		s.report(c.Request.Context(), s.statsStream, stats)
		s.fail(c, kind, begin, err, stats.ID)
		return
	}
	s.report(c.Request.Context(), s.statsStream, stats)

	s.done(kind, begin, http.StatusOK)
	c.JSON(http.StatusOK, res)
}

func (s *Server) uploadVideo(c *gin.Context) {
	begin := time.Now()
	metrics.InFlightRequests.Inc()
	defer metrics.InFlightRequests.Dec()

	kind := string(model.RequestKindVideo)

	header, err := s.formFile(c)
	if err != nil {
		s.fail(c, kind, begin, err, "")
		return
	}

	f, err := header.Open()
	if err != nil {
		s.fail(c, kind, begin, model.NewError(model.FileIOError, "open upload", err), "")
		return
	}
	defer f.Close()

	res, stats, err := pipeline.ProcessVideo(c.Request.Context(), s.svcs, header.Filename, f)
	if err != nil {
		stats.Errors++
		s.report(c.Request.Context(), s.statsStream, stats)
		s.fail(c, kind, begin, err, stats.ID)
		return
	}
	s.report(c.Request.Context(), s.statsStream, stats)

	s.done(kind, begin, http.StatusOK)
	c.JSON(http.StatusOK, res)
}

func (s *Server) getFile(c *gin.Context) {
	name := c.Param("file_name")

	full, err := s.svcs.StorageSvc.Resolve(name)
	if err != nil {
		lgr.Logger.Debug(
			"file request refused",
			slog.String("name", name),
			slog.Any("error", err),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.File(full)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"model":  s.svcs.CfgSvc.GetModelInfo(),
		"scorer": s.svcs.InferenceSvc.Name(),
	})
}

func (s *Server) formFile(c *gin.Context) (*multipart.FileHeader, error) {
	limit := s.svcs.CfgSvc.GetMaxUploadSize()
	if c.Request.ContentLength > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, model.NewError(model.DecodeError, "read upload", xerrors.Errorf("%w: %v", errMissingUpload, err))
	}
	return header, nil
}

func (s *Server) readUpload(c *gin.Context) (pipeline.Upload, error) {
	header, err := s.formFile(c)
	if err != nil {
		return pipeline.Upload{}, err
	}

	f, err := header.Open()
	if err != nil {
		return pipeline.Upload{}, model.NewError(model.FileIOError, "open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Upload{}, model.NewError(model.FileIOError, "read upload", err)
	}

	return pipeline.Upload{Filename: header.Filename, Data: data}, nil
}

// statusOf maps a request failure onto its HTTP status. Bad client input is
// a 400; everything else is on us.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, kind string, begin time.Time, err error, requestID string) {
	status := statusOf(err)

	lgr.Logger.Error(
		"upload request failed",
		slog.String("kind", kind),
		slog.String("request", requestID),
		slog.Int("status", status),
		slog.Any("error", lgr.Err(err)),
	)

	s.report(c.Request.Context(), s.errorStream, model.GenError("api",
		err,
		map[string]interface{}{
			"kind":    kind,
			"request": requestID,
			"status":  status,
		},
		"%s upload failed", kind))

	s.done(kind, begin, status)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) done(kind string, begin time.Time, status int) {
	metrics.RequestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	metrics.RequestDuration.WithLabelValues(kind).Observe(time.Since(begin).Seconds())
}

// report hands v to the mode loop unless the request goes away first.
func (s *Server) report(ctx context.Context, stream chan<- interface{}, v interface{}) {
	if stream == nil {
		return
	}

	select {
	case stream <- v:
	case <-ctx.Done():
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()

		lgr.Logger.Info(
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(begin)),
			slog.String("client", c.ClientIP()),
		)
	}
}
