package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "eth_chainId") {
			t.Errorf("unexpected request %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x539"}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	id, err := c.ChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id failed: %v", err)
	}
	if id.Int64() != 1337 {
		t.Fatalf("expected chain id 1337 got %d", id.Int64())
	}
	if gotUA != defaultUserAgent {
		t.Fatalf("expected user agent %q got %q", defaultUserAgent, gotUA)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), "", time.Second); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
