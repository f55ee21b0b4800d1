package api

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-segment/labels"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/cache"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/data"
	"github.com/khaledhikmat/vs-segment/service/inference"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"github.com/khaledhikmat/vs-segment/service/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router      *gin.Engine
	client      *resty.Client
	static      string
	statsStream chan interface{}
	errorStream chan interface{}
	media       *media.FakeService
}

func newTestServer(t *testing.T, mutators ...func(*config.Settings)) testServer {
	static := filepath.Join(t.TempDir(), "static")
	require.NoError(t, os.MkdirAll(static, 0755))

	cfg := config.NewHardCoded(func(s *config.Settings) {
		s.StaticFolder = static
		s.SettingsFolder = filepath.Join(static, "..", "settings")
		s.ScorerBackend = config.FakeBackend
		s.OutputVideoWidth = 64
		s.OutputVideoHeight = 32
		for _, m := range mutators {
			m(s)
		}
	})

	mediaSvc := media.NewFake()
	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfg,
		DataSvc:      data.NewFilesDB(cfg),
		StorageSvc:   storage.NewLocal(cfg, nil),
		InferenceSvc: inference.NewFake(8),
		MediaSvc:     &anyVideo{FakeService: mediaSvc},
		CacheSvc:     cache.NewMemory(),
		WebhookSvc:   webhook.NewFake(),
	}

	statsStream := make(chan interface{}, 16)
	errorStream := make(chan interface{}, 16)
	router := NewServer(svcs, statsStream, errorStream).Router()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return testServer{
		router:      router,
		client:      resty.New().SetBaseURL(srv.URL),
		static:      static,
		statsStream: statsStream,
		errorStream: errorStream,
		media:       mediaSvc,
	}
}

// anyVideo opens every staged upload as a short clip of solid frames.
type anyVideo struct {
	*media.FakeService
}

func (m *anyVideo) OpenVideo(path string) (media.Source, error) {
	if filepath.Ext(path) == ".mp4" {
		m.AddVideo(path, 3, media.SolidFrames(40, 20, color.NRGBA{200, 10, 10, 255}))
	}
	return m.FakeService.OpenVideo(path)
}

func solidRedPNG(t *testing.T) []byte {
	buf := &bytes.Buffer{}
	require.NoError(t, imaging.Encode(buf, imaging.New(100, 100, color.NRGBA{255, 0, 0, 255}), imaging.PNG))
	return buf.Bytes()
}

func TestUploadImageSolidRed(t *testing.T) {
	ts := newTestServer(t)

	res := model.ImageResult{}
	resp, err := ts.client.R().
		SetFileReader("file", "red.png", bytes.NewReader(solidRedPNG(t))).
		SetResult(&res).
		Post("/upload_image/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/tmp.png", res.OriginalImage)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/output.png", res.Result)

	out, err := ts.client.R().Get(res.Result)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, out.StatusCode())

	img, err := imaging.Decode(bytes.NewReader(out.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1024, 512), img.Bounds())

	palette := map[color.RGBA]bool{}
	for _, c := range labels.Palette() {
		palette[c] = true
	}
	nrgba := imaging.Clone(img)
	for y := 0; y < 512; y += 7 {
		for x := 0; x < 1024; x += 13 {
			c := nrgba.NRGBAAt(x, y)
			assert.True(t, palette[color.RGBA{c.R, c.G, c.B, c.A}], "pixel %d,%d = %v", x, y, c)
		}
	}

	stats := (<-ts.statsStream).(model.RequestStats)
	assert.Equal(t, res.RequestID, stats.ID)
	assert.Equal(t, model.RequestKindImage, stats.Kind)
}

func TestUploadImageRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.R().
		SetFileReader("file", "notes.png", bytes.NewReader([]byte("plain text"))).
		Post("/upload_image/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Contains(t, resp.String(), `"error"`)

	reported := (<-ts.errorStream).(model.CustomError)
	assert.Equal(t, "api", reported.Processor)
	assert.ErrorIs(t, reported, model.ErrDecode)

	// No file field at all
	resp, err = ts.client.R().
		SetFormData(map[string]string{"other": "value"}).
		Post("/upload_image/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestUploadOverLimit(t *testing.T) {
	ts := newTestServer(t, func(s *config.Settings) {
		s.MaxUploadSizeMB = 1
	})

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "huge.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, 2<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	payload := body.Bytes()

	// Declared length over the limit
	req := httptest.NewRequest(http.MethodPost, "/upload_image/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	// Unknown length is cut off while reading
	req = httptest.NewRequest(http.MethodPost, "/upload_video/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadVideo(t *testing.T) {
	ts := newTestServer(t)

	res := model.VideoResult{}
	resp, err := ts.client.R().
		SetFileReader("file", "clip.mp4", bytes.NewReader([]byte("container"))).
		SetResult(&res).
		Post("/upload_video/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/video_temp.mp4", res.OriginalVideo)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/outputvideo.avi", res.Result)

	written := ts.media.Written(filepath.Join(ts.static, "tmp", res.RequestID, "outputvideo.avi"))
	assert.Len(t, written, 3)

	staged, err := ts.client.R().Get(res.OriginalVideo)
	require.NoError(t, err)
	assert.Equal(t, "container", staged.String())

	// Unknown containers cannot be opened
	resp, err = ts.client.R().
		SetFileReader("file", "clip.mkv", bytes.NewReader([]byte("container"))).
		Post("/upload_video/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestGetFileStaysInsideStatic(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(ts.static, "hello.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ts.static, "..", "secret.txt"), []byte("secret"), 0644))

	resp, err := ts.client.R().Get("/get_file/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "hi", resp.String())

	for _, target := range []string{
		"/get_file/../secret.txt",
		"/get_file/tmp/../../secret.txt",
		"/get_file/missing.png",
		"/get_file/",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.NotContains(t, w.Body.String(), "secret", target)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	body := struct {
		Status string          `json:"status"`
		Model  model.ModelInfo `json:"model"`
		Scorer string          `json:"scorer"`
	}{}
	resp, err := ts.client.R().SetResult(&body).Get("/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 8, body.Model.Classes)
	assert.Equal(t, 512, body.Model.Height)
	assert.Equal(t, config.FakeBackend, body.Scorer)
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.R().Get("/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "segment_in_flight_requests")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(model.Errorf(model.DecodeError, "x", "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(model.Errorf(model.ScoringError, "x", "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(model.Errorf(model.FileIOError, "x", "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(&http.MaxBytesError{Limit: 1}))
}
