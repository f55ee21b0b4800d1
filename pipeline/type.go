package pipeline

import (
	"github.com/khaledhikmat/vs-segment/service/cache"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/data"
	"github.com/khaledhikmat/vs-segment/service/inference"
	"github.com/khaledhikmat/vs-segment/service/janitor"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"github.com/khaledhikmat/vs-segment/service/webhook"
)

// ServicesFactory carries every service a request needs. CacheSvc,
// WebhookSvc and JanitorSvc are optional.
type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	StorageSvc   storage.IService
	InferenceSvc inference.IService
	MediaSvc     media.IService
	CacheSvc     cache.IService
	WebhookSvc   webhook.IService
	JanitorSvc   janitor.IService
}

// Upload is a client file as received.
type Upload struct {
	Filename string
	Data     []byte
}

// VideoSpec describes the assembled output video.
type VideoSpec struct {
	Codec  string
	FPS    float64
	Width  int
	Height int
}

func VideoSpecFrom(cfgSvc config.IService) VideoSpec {
	return VideoSpec{
		Codec:  cfgSvc.GetOutputVideoCodec(),
		FPS:    cfgSvc.GetOutputVideoFPS(),
		Width:  cfgSvc.GetOutputVideoWidth(),
		Height: cfgSvc.GetOutputVideoHeight(),
	}
}
