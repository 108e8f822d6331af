package cmd

import (
	"testing"

	"github.com/trackload/trackload/internal/testutil"
)

// startMockServer serves a mock file for the duration of the test. The test
// is skipped when no loopback port can be bound.
func startMockServer(t *testing.T, opts ...testutil.MockServerOption) *testutil.MockServer {
	t.Helper()
	server := testutil.NewMockServerT(t, opts...)
	t.Cleanup(server.Close)
	return server
}
