package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// loopback4 binds an IPv4 loopback port. Some sandboxes have no IPv6 listener.
func loopback4() (net.Listener, error) {
	return net.Listen("tcp4", "127.0.0.1:0")
}

func startOn(ln net.Listener, handler http.Handler) *httptest.Server {
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

// NewHTTPServer starts a test server on IPv4 loopback, falling back to the
// httptest default when that fails.
func NewHTTPServer(handler http.Handler) *httptest.Server {
	ln, err := loopback4()
	if err != nil {
		return httptest.NewServer(handler)
	}
	return startOn(ln, handler)
}

// NewHTTPServerT is NewHTTPServer for tests: it skips t when no port can be bound.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := loopback4()
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}
	return startOn(ln, handler)
}
