package client

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultUserAgent = "dvote/1.0"
)

// Client is an ethereum JSON-RPC client whose HTTP requests carry our user agent
// and a bounded timeout.
type Client struct {
	*ethclient.Client
	userAgent string
}

func New(ctx context.Context, endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("rpc endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := http.Client{
		Timeout: timeout,
	}
	c := &Client{
		userAgent: defaultUserAgent,
	}
	httpClient.Transport = c

	rc, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(&httpClient))
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", endpoint)
	}
	c.Client = ethclient.NewClient(rc)
	return c, nil
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}
