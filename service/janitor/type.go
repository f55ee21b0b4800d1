package janitor

import (
	"time"

	"github.com/khaledhikmat/vs-segment/model"
)

type IService interface {
	// Sweep removes every workspace last modified before now minus the TTL.
	Sweep(now time.Time) (removed int, err error)
	Subscribe() (<-chan model.JanitorStats, error)
	Unsubscribe() error
	Finalize()
}
