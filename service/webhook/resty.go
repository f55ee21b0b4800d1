package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/xerrors"
)

type restyService struct {
	client *resty.Client
	url    string
}

// NewResty posts JSON payloads to url.
func NewResty(url string) IService {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")

	return &restyService{
		client: client,
		url:    url,
	}
}

func (svc *restyService) Post(ctx context.Context, payload map[string]interface{}) error {
	resp, err := svc.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(svc.url)
	if err != nil {
		return xerrors.Errorf("webhook post: %w", err)
	}

	if resp.IsError() {
		return xerrors.Errorf("webhook post: unexpected status %d", resp.StatusCode())
	}
	return nil
}
