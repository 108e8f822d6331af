// Package testutil provides testing utilities for the TrackLoad downloader.
package testutil

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// MockServer is a configurable HTTP test server for download testing.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	FileSize          int64         // Size of the served file
	SendContentLength bool          // Whether to announce Content-Length
	StatusCode        int           // Status for every response (default 200)
	ContentType       string        // Content-Type header value
	Filename          string        // Filename in Content-Disposition header
	RandomData        bool          // If true, serve random data; otherwise serve zeros
	Latency           time.Duration // Artificial latency per request
	ChunkSize         int           // Bytes per write+flush
	ChunkDelay        time.Duration // Pause after every chunk (simulates slow connection)
	FailAfterBytes    int64         // Fail connection after this many bytes (0 = no fail)

	// Tracking
	RequestCount   atomic.Int64
	BytesServed    atomic.Int64
	ActiveRequests atomic.Int64
	FailedRequests atomic.Int64

	// Internal
	data          []byte
	CustomHandler http.HandlerFunc
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithHandler sets a custom request handler.
func WithHandler(h http.HandlerFunc) MockServerOption {
	return func(m *MockServer) {
		m.CustomHandler = h
	}
}

// WithFileSize sets the file size to serve.
func WithFileSize(size int64) MockServerOption {
	return func(m *MockServer) {
		m.FileSize = size
	}
}

// WithContentLength enables or disables the Content-Length header. Without
// it the body is sent chunked and the client sees an unknown length.
func WithContentLength(enabled bool) MockServerOption {
	return func(m *MockServer) {
		m.SendContentLength = enabled
	}
}

// WithStatus makes every response use code.
func WithStatus(code int) MockServerOption {
	return func(m *MockServer) {
		m.StatusCode = code
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) {
		m.ContentType = ct
	}
}

// WithFilename sets the filename in Content-Disposition header.
func WithFilename(name string) MockServerOption {
	return func(m *MockServer) {
		m.Filename = name
	}
}

// WithRandomData enables serving random bytes instead of zeros.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) {
		m.RandomData = random
	}
}

// WithData serves exactly data.
func WithData(data []byte) MockServerOption {
	return func(m *MockServer) {
		m.data = append([]byte(nil), data...)
		m.FileSize = int64(len(data))
	}
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.Latency = d
	}
}

// WithChunks writes the body size bytes at a time, pausing delay after each.
func WithChunks(size int, delay time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.ChunkSize = size
		m.ChunkDelay = delay
	}
}

// WithFailAfterBytes causes the connection to fail after serving N bytes.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) {
		m.FailAfterBytes = n
	}
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		FileSize:          1024 * 1024, // 1MB default
		SendContentLength: true,
		StatusCode:        http.StatusOK,
		ContentType:       "application/octet-stream",
		ChunkSize:         32 * 1024,
	}

	for _, opt := range opts {
		opt(m)
	}

	// Pre-generate data
	if int64(len(m.data)) != m.FileSize {
		m.data = make([]byte, m.FileSize)
		if m.RandomData {
			_, _ = rand.Read(m.data)
		}
	}
	return m
}

// NewMockServer creates a new mock HTTP server with the given options.
func NewMockServer(opts ...MockServerOption) *MockServer {
	m := newMockServer(opts)
	m.Server = NewHTTPServer(http.HandlerFunc(m.handleRequest))
	return m
}

// NewMockServerT creates a new mock HTTP server and skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	m := newMockServer(opts)
	m.Server = NewHTTPServerT(t, http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the server's URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Data returns the bytes the server serves.
func (m *MockServer) Data() []byte {
	return m.data
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

// Stats returns a summary of server statistics.
func (m *MockServer) Stats() MockServerStats {
	return MockServerStats{
		TotalRequests:  m.RequestCount.Load(),
		BytesServed:    m.BytesServed.Load(),
		FailedRequests: m.FailedRequests.Load(),
	}
}

// MockServerStats contains server statistics.
type MockServerStats struct {
	TotalRequests  int64
	BytesServed    int64
	FailedRequests int64
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if m.CustomHandler != nil {
		m.CustomHandler(w, r)
		return
	}

	m.RequestCount.Add(1)
	m.ActiveRequests.Add(1)
	defer m.ActiveRequests.Add(-1)

	// Add request latency
	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}

	if m.StatusCode < 200 || m.StatusCode > 299 {
		m.FailedRequests.Add(1)
		http.Error(w, http.StatusText(m.StatusCode), m.StatusCode)
		return
	}

	w.Header().Set("Content-Type", m.ContentType)
	if m.SendContentLength {
		w.Header().Set("Content-Length", strconv.FormatInt(m.FileSize, 10))
	}
	if m.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	}
	w.WriteHeader(m.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	flusher, _ := w.(http.Flusher)
	chunkSize := int64(m.ChunkSize)
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}

	bytesWritten := int64(0)
	for bytesWritten < m.FileSize {
		if m.FailAfterBytes > 0 && bytesWritten >= m.FailAfterBytes {
			m.FailedRequests.Add(1)
			// Abruptly end the response; the client sees a short body.
			panic(http.ErrAbortHandler)
		}

		end := bytesWritten + chunkSize
		if end > m.FileSize {
			end = m.FileSize
		}

		n, err := w.Write(m.data[bytesWritten:end])
		if err != nil {
			return // Client disconnected
		}
		if flusher != nil {
			flusher.Flush()
		}

		bytesWritten += int64(n)
		m.BytesServed.Add(int64(n))

		if m.ChunkDelay > 0 {
			time.Sleep(m.ChunkDelay)
		}
	}
}
