package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/cache"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/data"
	"github.com/khaledhikmat/vs-segment/service/inference"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"github.com/khaledhikmat/vs-segment/service/webhook"
)

type testServices struct {
	ServicesFactory
	media   *media.FakeService
	webhook *webhook.FakeService
	static  string
}

func newTestServices(t *testing.T, mutate func(*config.Settings)) testServices {
	static := t.TempDir()
	cfg := config.NewHardCoded(func(s *config.Settings) {
		s.StaticFolder = static
		s.SettingsFolder = filepath.Join(static, "settings")
		s.ScorerBackend = config.FakeBackend
		s.ImageHeight = 8
		s.ImageWidth = 16
		s.OutputVideoWidth = 32
		s.OutputVideoHeight = 16
		if mutate != nil {
			mutate(s)
		}
	})

	mediaSvc := media.NewFake()
	webhookSvc := webhook.NewFake()
	return testServices{
		ServicesFactory: ServicesFactory{
			CfgSvc:       cfg,
			DataSvc:      data.NewFilesDB(cfg),
			StorageSvc:   storage.NewFake(cfg),
			InferenceSvc: inference.NewFake(8),
			MediaSvc:     mediaSvc,
			CacheSvc:     cache.NewMemory(),
			WebhookSvc:   webhookSvc,
		},
		media:   mediaSvc,
		webhook: webhookSvc,
		static:  static,
	}
}

func pngBytes(t *testing.T, img image.Image) []byte {
	buf := &bytes.Buffer{}
	require.NoError(t, imaging.Encode(buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestExt(t *testing.T) {
	assert.Equal(t, "png", Ext("photo.PNG"))
	assert.Equal(t, "mp4", Ext("dir/clip.final.mp4"))
	assert.Equal(t, "bin", Ext("noext"))
	assert.Equal(t, "bin", Ext("trailing."))
	assert.Equal(t, "bin", Ext("evil.p/ng"))
	assert.Equal(t, "jpg", Ext(`C:\Users\me\cat.jpg`))
	assert.Equal(t, "bin", Ext("x.ab$"))
}

func TestSplitStagesEveryFrame(t *testing.T) {
	svcs := newTestServices(t, nil)
	dir := t.TempDir()
	svcs.media.AddVideo("five.mp4", 5, media.SolidFrames(6, 4, color.White))

	n, err := Split(context.Background(), svcs.MediaSvc, "five.mp4", dir, 1000)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	for i := 0; i < 5; i++ {
		assert.FileExists(t, FramePath(dir, i))
	}
	assert.NoFileExists(t, FramePath(dir, 5))
}

func TestSplitTruncatesAtCap(t *testing.T) {
	svcs := newTestServices(t, nil)
	dir := t.TempDir()
	svcs.media.AddVideo("long.mp4", 2000, media.SolidFrames(2, 2, color.Black))

	n, err := Split(context.Background(), svcs.MediaSvc, "long.mp4", dir, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.FileExists(t, FramePath(dir, 999))
	assert.NoFileExists(t, FramePath(dir, 1000))
}

func TestSplitFailures(t *testing.T) {
	svcs := newTestServices(t, nil)
	dir := t.TempDir()

	_, err := Split(context.Background(), svcs.MediaSvc, "missing.mp4", dir, 10)
	assert.ErrorIs(t, err, model.ErrDecode)

	svcs.media.AddVideo("empty.mp4", 0, media.SolidFrames(2, 2, color.Black))
	_, err = Split(context.Background(), svcs.MediaSvc, "empty.mp4", dir, 10)
	assert.ErrorIs(t, err, model.ErrDecode)

	svcs.media.AddVideo("ok.mp4", 3, media.SolidFrames(2, 2, color.Black))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Split(ctx, svcs.MediaSvc, "ok.mp4", dir, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformAndAssemble(t *testing.T) {
	svcs := newTestServices(t, nil)
	dir := t.TempDir()
	svcs.media.AddVideo("clip.mp4", 3, func(i int) image.Image {
		return imaging.New(12, 6, color.NRGBA{uint8(i * 100), 0, 0, 255})
	})

	n, err := Split(context.Background(), svcs.MediaSvc, "clip.mp4", dir, 10)
	require.NoError(t, err)

	tr, err := NewTransformer(svcs.InferenceSvc, 8, 16)
	require.NoError(t, err)
	require.NoError(t, TransformFrames(context.Background(), svcs.MediaSvc, tr, dir, n))

	for i := 0; i < n; i++ {
		img, err := svcs.MediaSvc.ReadImage(ResultPath(dir, i))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	}

	out := filepath.Join(dir, "outputvideo.avi")
	format := VideoSpec{Codec: "MJPG", FPS: 5, Width: 1024, Height: 512}
	require.NoError(t, Assemble(context.Background(), svcs.MediaSvc, dir, n, out, format))

	frames := svcs.media.Written(out)
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.Equal(t, image.Rect(0, 0, 1024, 512), f.Bounds())
	}

	// A missing result frame is a file error
	err = Assemble(context.Background(), svcs.MediaSvc, dir, n+1, filepath.Join(dir, "again.avi"), format)
	assert.ErrorIs(t, err, model.ErrFileIO)
}

func TestProcessImage(t *testing.T) {
	svcs := newTestServices(t, nil)
	upload := Upload{Filename: "red.png", Data: pngBytes(t, imaging.New(100, 100, color.NRGBA{255, 0, 0, 255}))}

	res, stats, err := ProcessImage(context.Background(), svcs.ServicesFactory, upload)
	require.NoError(t, err)

	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/tmp.png", res.OriginalImage)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/output.png", res.Result)
	assert.Equal(t, "fake://tmp/"+res.RequestID+"/output.png", res.StoredResult)
	assert.False(t, res.Cached)
	assert.Equal(t, res.RequestID, stats.ID)
	assert.Equal(t, model.RequestKindImage, stats.Kind)
	assert.Equal(t, 1, stats.Frames)
	assert.NotZero(t, stats.Timestamp)

	ws := filepath.Join(svcs.static, "tmp", res.RequestID)
	assert.FileExists(t, filepath.Join(ws, "tmp.png"))

	out, err := imaging.Open(filepath.Join(ws, "output.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), out.Bounds())

	// Same bytes again hit the cache
	again, stats, err := ProcessImage(context.Background(), svcs.ServicesFactory, upload)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.True(t, stats.Cached)
	assert.Equal(t, res.RequestID, again.RequestID)

	// Until the earlier workspace is gone
	require.NoError(t, svcs.StorageSvc.RemoveWorkspace(res.RequestID))
	fresh, _, err := ProcessImage(context.Background(), svcs.ServicesFactory, upload)
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.NotEqual(t, res.RequestID, fresh.RequestID)
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	svcs := newTestServices(t, nil)

	_, stats, err := ProcessImage(context.Background(), svcs.ServicesFactory, Upload{Filename: "x.jpg", Data: []byte("not an image")})
	assert.ErrorIs(t, err, model.ErrDecode)
	assert.NotEmpty(t, stats.ID)

	_, _, err = ProcessImage(context.Background(), svcs.ServicesFactory, Upload{Filename: "x.jpg"})
	assert.ErrorIs(t, err, model.ErrDecode)
}

func TestConcurrentUploadsGetDistinctWorkspaces(t *testing.T) {
	svcs := newTestServices(t, nil)
	svcs.CacheSvc = nil

	data := pngBytes(t, imaging.New(10, 10, color.White))
	ids := make(chan string, 4)
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			res, _, err := ProcessImage(context.Background(), svcs.ServicesFactory, Upload{Filename: "w.png", Data: data})
			errs <- err
			ids <- res.RequestID
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
		seen[<-ids] = true
	}
	assert.Len(t, seen, 4)
}

func TestProcessVideo(t *testing.T) {
	svcs := newTestServices(t, func(s *config.Settings) {
		s.MaxVideoFrames = 4
	})

	// Whatever gets staged opens as a 6-frame clip
	svcs.MediaSvc = &stagedMedia{FakeService: svcs.media, frames: 6}

	res, stats, err := ProcessVideo(context.Background(), svcs.ServicesFactory, "drive.MP4", strings.NewReader("container bytes"))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Frames)
	assert.Equal(t, 4, stats.Frames)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/video_temp.mp4", res.OriginalVideo)
	assert.Equal(t, "/get_file/tmp/"+res.RequestID+"/outputvideo.avi", res.Result)

	ws := filepath.Join(svcs.static, "tmp", res.RequestID)
	staged, err := os.ReadFile(filepath.Join(ws, "video_temp.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "container bytes", string(staged))

	frames := svcs.media.Written(filepath.Join(ws, "outputvideo.avi"))
	require.Len(t, frames, 4)
	assert.Equal(t, image.Rect(0, 0, 32, 16), frames[0].Bounds())

	require.Len(t, svcs.webhook.Payloads, 1)
	assert.Equal(t, res.RequestID, svcs.webhook.Payloads[0]["request_id"])
	assert.Equal(t, 4, svcs.webhook.Payloads[0]["frames"])
}

func TestProcessVideoUndecodable(t *testing.T) {
	svcs := newTestServices(t, nil)

	_, stats, err := ProcessVideo(context.Background(), svcs.ServicesFactory, "bad.avi", strings.NewReader("garbage"))
	assert.ErrorIs(t, err, model.ErrDecode)
	assert.Equal(t, model.RequestKindVideo, stats.Kind)
	assert.Empty(t, svcs.webhook.Payloads)
}

// stagedMedia serves every opened path as a video of solid frames.
type stagedMedia struct {
	*media.FakeService
	frames int
}

func (m *stagedMedia) OpenVideo(path string) (media.Source, error) {
	m.AddVideo(path, m.frames, media.SolidFrames(20, 10, color.NRGBA{0, 128, 255, 255}))
	return m.FakeService.OpenVideo(path)
}
