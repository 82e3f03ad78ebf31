package network

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type Http interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type DefaultHttp struct {
	client *resty.Client
}

func NewHttp() Http {
	return &DefaultHttp{
		client: resty.New(),
	}
}

// Get returns the body of a GET request. The deadline of ctx bounds the whole request, non 2xx
// responses are errors.
func (d *DefaultHttp) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("GET %s failed with status %d", url, resp.StatusCode())
	}

	return resp.Body(), nil
}
