package lcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sisu-network/dwallet/types"
)

const (
	RequestTimeout = 30 * time.Second

	BroadcastModeBlock = "block"
)

// Client talks to the REST server (LCD) of a Cosmos node.
type Client interface {
	Account(ctx context.Context, address string) (*types.Account, error)
	GenerateTx(ctx context.Context, path string, body interface{}) (*types.StdTx, error)
	BroadcastTx(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error)
}

// ResponseError is returned when the LCD answers with a non 2xx status. Body is the raw
// response which usually carries the node's error message.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("lcd responded with status %d: %s", e.Status, e.Body)
}

type defaultClient struct {
	client *resty.Client
}

func NewClient(url string) Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(url, "/")).
		SetTimeout(RequestTimeout).
		SetHeader("Content-Type", "application/json")

	return &defaultClient{
		client: client,
	}
}

type typedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// heightWrapper is the envelope newer LCD versions put around every response.
type heightWrapper struct {
	Height string          `json:"height"`
	Result json.RawMessage `json:"result"`
}

func unwrap(body []byte) []byte {
	wrapper := &heightWrapper{}
	if err := json.Unmarshal(body, wrapper); err == nil && len(wrapper.Result) > 0 {
		return wrapper.Result
	}

	return body
}

func (c *defaultClient) Account(ctx context.Context, address string) (*types.Account, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/auth/accounts/" + address)
	if err != nil {
		return nil, errors.WithMessage(err, "cannot query account "+address)
	}
	if resp.IsError() {
		return nil, &ResponseError{Status: resp.StatusCode(), Body: resp.String()}
	}

	body := unwrap(resp.Body())
	tv := &typedValue{}
	if err := json.Unmarshal(body, tv); err != nil {
		return nil, errors.WithMessage(err, "cannot parse account response")
	}
	if len(tv.Value) > 0 {
		body = tv.Value
	}

	account := &types.Account{}
	if err := json.Unmarshal(body, account); err != nil {
		return nil, errors.WithMessage(err, "cannot parse account "+address)
	}

	return account, nil
}

// GenerateTx posts body to the message endpoint at path. The body must carry a base_req with
// generate_only set so the LCD returns the unsigned transaction.
func (c *defaultClient) GenerateTx(ctx context.Context, path string, body interface{}) (*types.StdTx, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	resp, err := c.client.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return nil, errors.WithMessage(err, "cannot generate tx at "+path)
	}
	if resp.IsError() {
		return nil, &ResponseError{Status: resp.StatusCode(), Body: resp.String()}
	}

	raw := unwrap(resp.Body())
	tv := &typedValue{}
	if err := json.Unmarshal(raw, tv); err != nil {
		return nil, errors.WithMessage(err, "cannot parse generated tx")
	}
	if len(tv.Value) > 0 {
		raw = tv.Value
	}

	tx := &types.StdTx{}
	if err := json.Unmarshal(raw, tx); err != nil {
		return nil, errors.WithMessage(err, "cannot parse generated tx")
	}

	return tx, nil
}

// BroadcastTx posts the signed transaction to /txs. The raw result is returned because it is
// either a single result or an array of them.
func (c *defaultClient) BroadcastTx(ctx context.Context, body *types.BroadcastBody) (json.RawMessage, error) {
	resp, err := c.client.R().SetContext(ctx).SetBody(body).Post("/txs")
	if err != nil {
		return nil, errors.WithMessage(err, "cannot broadcast tx")
	}
	if resp.IsError() {
		return nil, &ResponseError{Status: resp.StatusCode(), Body: resp.String()}
	}

	return json.RawMessage(unwrap(resp.Body())), nil
}
