package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourorg/bulk-verify/internal/types"
)

func noBackoff(int) time.Duration { return 0 }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, MaxAttempts: 3, Backoff: noBackoff}, nil)
	return c, srv
}

func TestVerifyValid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		fmt.Fprintf(w, `{"email":%q,"email_status":"valid","email_mx":"mx.x.com","provider":"x"}`, email)
	})
	out := c.Verify(context.Background(), "a@x.com")
	if out.Status != types.StatusValid {
		t.Fatalf("status=%q; want valid", out.Status)
	}
	if out.Address != "a@x.com" || out.MX != "mx.x.com" || out.Provider != "x" {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestVerifyRetriesThenSucceeds(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"email":"a@x.com","email_status":"invalid","email_mx":"","provider":"x"}`)
	})
	out := c.Verify(context.Background(), "a@x.com")
	if out.Status != types.StatusInvalid {
		t.Fatalf("status=%q; want invalid", out.Status)
	}
	if out.Unreachable() {
		t.Fatalf("outcome should not be the synthetic exhaustion classification: %+v", out)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("calls=%d; want 3", got)
	}
}

func TestVerifyExhaustionIsDataNotError(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	out := c.Verify(context.Background(), "b@y.com")
	if out.Status != types.StatusInvalid || out.MX != "error" || out.Provider != "error" {
		t.Fatalf("outcome=%+v; want synthetic invalid/error/error", out)
	}
	if !out.Unreachable() {
		t.Fatalf("Unreachable()=false; want true")
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("calls=%d; want exactly 3 attempts", got)
	}
}

func TestVerifyShortCircuitsWithoutNetworkCall(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	})
	for _, addr := range []string{"", "   ", "null", "undefined"} {
		out := c.Verify(context.Background(), addr)
		if out.Status != types.StatusInvalid {
			t.Fatalf("Verify(%q).Status=%q; want invalid", addr, out.Status)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 0 {
		t.Fatalf("calls=%d; want 0", got)
	}
}

func TestVerifyNormalizesIDNDomain(t *testing.T) {
	var seen string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("email")
		fmt.Fprint(w, `{"email":"","email_status":"valid","email_mx":"mx","provider":"p"}`)
	})
	out := c.Verify(context.Background(), "user@café.example")
	if seen != "user@xn--caf-dma.example" {
		t.Fatalf("wire address=%q; want punycoded", seen)
	}
	// the original spelling is preserved on the outcome
	if out.Address != "user@café.example" {
		t.Fatalf("outcome address=%q", out.Address)
	}
}
