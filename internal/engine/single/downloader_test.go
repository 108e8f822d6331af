package single

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackload/trackload/internal/engine/events"
	"github.com/trackload/trackload/internal/engine/types"
	"github.com/trackload/trackload/internal/testutil"
)

// neverCancel is a signal that is never set.
type neverCancel struct{}

func (neverCancel) Cancelled() bool { return false }

// cancelAfterChecks reports cancelled once it has been asked more than n times.
type cancelAfterChecks struct {
	n      int64
	checks atomic.Int64
}

func (c *cancelAfterChecks) Cancelled() bool {
	return c.checks.Add(1) > c.n
}

// flagSignal is a plain atomic flag the test flips by hand.
type flagSignal struct{ atomic.Bool }

func (f *flagSignal) Cancelled() bool { return f.Load() }

// eventLog drains a progress channel in the background.
type eventLog struct {
	ch   chan any
	mu   sync.Mutex
	msgs []any
	done chan struct{}
}

func newEventLog(onMsg func(any)) *eventLog {
	l := &eventLog{ch: make(chan any), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for msg := range l.ch {
			if onMsg != nil {
				onMsg(msg)
			}
			l.mu.Lock()
			l.msgs = append(l.msgs, msg)
			l.mu.Unlock()
		}
	}()
	return l
}

// close stops collection; call only after Download has returned.
func (l *eventLog) close() []any {
	close(l.ch)
	<-l.done
	return l.msgs
}

func progressValues(msgs []any) []int64 {
	var values []int64
	for _, msg := range msgs {
		if p, ok := msg.(events.ProgressMsg); ok {
			values = append(values, p.Downloaded)
		}
	}
	return values
}

func newTestDownloader(t *testing.T, progressCh chan<- any) *Downloader {
	t.Helper()
	runtime := &types.RuntimeConfig{LockDir: t.TempDir()}
	return NewDownloader("test-id", progressCh, nil, runtime)
}

func TestNewDownloader(t *testing.T) {
	state := types.NewTransferState("new-id")
	d := NewDownloader("new-id", nil, state, nil)

	require.NotNil(t, d.Client)
	assert.Equal(t, "new-id", d.ID)
	assert.Same(t, state, d.State)
	assert.Zero(t, d.Client.Timeout, "no client timeout: only the user cancels")
}

func TestNewDownloader_NilState(t *testing.T) {
	d := NewDownloader("nil-state", nil, nil, nil)
	require.NotNil(t, d.State)
	assert.Equal(t, types.UnknownSize, d.State.Total.Load())
}

// =============================================================================
// Downloader - Success paths
// =============================================================================

func TestDownloader_EndToEnd10000Bytes(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-e2e")
	defer cleanup()

	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(10000),
		testutil.WithRandomData(true),
	)
	defer server.Close()

	log := newEventLog(nil)
	d := newTestDownloader(t, log.ch)
	destPath := filepath.Join(tmpDir, "e2e.bin")

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	msgs := log.close()

	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())
	assert.Equal(t, destPath, outcome.DestPath)
	assert.Equal(t, int64(10000), outcome.Transferred)
	assert.Equal(t, int64(10000), outcome.Total)

	require.NoError(t, testutil.VerifyFileSize(destPath, 10000))
	match, err := testutil.FileMatches(destPath, server.Data())
	require.NoError(t, err)
	assert.True(t, match, "file content must match the served bytes in order")

	values := progressValues(msgs)
	require.NotEmpty(t, values)
	assert.Equal(t, int64(10000), values[len(values)-1])

	pct, ok := types.Percent(d.State.Transferred.Load(), d.State.Total.Load())
	assert.True(t, ok)
	assert.InDelta(t, 100.0, pct, 0.0001)

	// Started first, Complete last.
	_, isStarted := msgs[0].(events.DownloadStartedMsg)
	assert.True(t, isStarted, "first event should be DownloadStartedMsg, got %T", msgs[0])
	complete, isComplete := msgs[len(msgs)-1].(events.DownloadCompleteMsg)
	require.True(t, isComplete, "last event should be DownloadCompleteMsg, got %T", msgs[len(msgs)-1])
	assert.Equal(t, int64(10000), complete.Total)
}

func TestDownloader_ProgressMonotonic(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-progress")
	defer cleanup()

	fileSize := int64(256 * types.KB)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithChunks(5000, time.Millisecond),
	)
	defer server.Close()

	log := newEventLog(nil)
	d := newTestDownloader(t, log.ch)
	destPath := filepath.Join(tmpDir, "progress.bin")

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	msgs := log.close()
	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())

	values := progressValues(msgs)
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.Greater(t, values[i], values[i-1], "progress must increase with every written chunk")
		assert.LessOrEqual(t, values[i]-values[i-1], int64(types.ChunkSize), "no step larger than one chunk")
	}
	assert.Equal(t, fileSize, values[len(values)-1])
	assert.NoError(t, testutil.VerifyFileSize(destPath, fileSize))

	for _, msg := range msgs {
		if p, ok := msg.(events.ProgressMsg); ok {
			assert.LessOrEqual(t, p.Downloaded, p.Total, "transferred never exceeds a known total")
		}
	}
}

func TestDownloader_UnknownLength(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-unknown")
	defer cleanup()

	fileSize := int64(50 * types.KB)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithContentLength(false),
	)
	defer server.Close()

	log := newEventLog(nil)
	d := newTestDownloader(t, log.ch)
	destPath := filepath.Join(tmpDir, "unknown.bin")

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	msgs := log.close()

	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())
	assert.Equal(t, types.UnknownSize, outcome.Total)
	assert.Equal(t, fileSize, outcome.Transferred)
	assert.Equal(t, types.UnknownSize, d.State.Total.Load())

	_, ok := types.Percent(d.State.Transferred.Load(), d.State.Total.Load())
	assert.False(t, ok)

	for _, msg := range msgs {
		switch m := msg.(type) {
		case events.DownloadStartedMsg:
			assert.Equal(t, types.UnknownSize, m.Total)
		case events.ProgressMsg:
			assert.Equal(t, types.UnknownSize, m.Total)
		}
	}
	assert.NoError(t, testutil.VerifyFileSize(destPath, fileSize))
}

func TestDownloader_EmptyBody(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-empty")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithFileSize(0))
	defer server.Close()

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "empty.bin")

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())
	assert.NoError(t, testutil.VerifyFileSize(destPath, 0))
}

func TestDownloader_TruncatesExistingFile(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-truncate")
	defer cleanup()

	destPath, err := testutil.CreateTestFile(tmpDir, "existing.bin", 64*types.KB, true)
	require.NoError(t, err)

	server := testutil.NewMockServerT(t, testutil.WithData([]byte("short content")))
	defer server.Close()

	d := newTestDownloader(t, nil)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "short content", string(data))
}

func TestDownloader_DirectoryDestination(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-dir")
	defer cleanup()

	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(2048),
		testutil.WithFilename("report.pdf"),
	)
	defer server.Close()

	d := newTestDownloader(t, nil)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL() + "/ignored.bin", DestPath: tmpDir}, neverCancel{})

	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())
	assert.Equal(t, filepath.Join(tmpDir, "report.pdf"), outcome.DestPath)
	assert.NoError(t, testutil.VerifyFileSize(outcome.DestPath, 2048))
}

func TestDownloader_DirectoryDestinationFromURL(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-dir-url")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithFileSize(100))
	defer server.Close()

	d := newTestDownloader(t, nil)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL() + "/files/data.csv", DestPath: tmpDir}, neverCancel{})

	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())
	assert.Equal(t, filepath.Join(tmpDir, "data.csv"), outcome.DestPath)
}

func TestDownloader_ContentDetected(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-detect")
	defer cleanup()

	png := make([]byte, 1000)
	copy(png, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})

	server := testutil.NewMockServerT(t, testutil.WithData(png))
	defer server.Close()

	log := newEventLog(nil)
	d := newTestDownloader(t, log.ch)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: filepath.Join(tmpDir, "image")}, neverCancel{})
	msgs := log.close()
	require.Equal(t, types.Succeeded, outcome.Kind, outcome.Message())

	var detected []events.ContentDetectedMsg
	for _, msg := range msgs {
		if m, ok := msg.(events.ContentDetectedMsg); ok {
			detected = append(detected, m)
		}
	}
	require.Len(t, detected, 1, "content is detected exactly once")
	assert.Equal(t, "image/png", detected[0].MIME)
	assert.Equal(t, "png", detected[0].Extension)
	assert.Equal(t, "image/png", d.State.ContentType())
}

// =============================================================================
// Downloader - Failures
// =============================================================================

func TestDownloader_HTTP404(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-404")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithStatus(http.StatusNotFound))
	defer server.Close()

	log := newEventLog(nil)
	d := newTestDownloader(t, log.ch)
	destPath := filepath.Join(tmpDir, "missing.bin")

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	msgs := log.close()

	require.Equal(t, types.Failed, outcome.Kind)
	kind, ok := types.KindOf(outcome.Err)
	require.True(t, ok)
	assert.Equal(t, types.HTTPStatusError, kind)
	assert.Equal(t, http.StatusNotFound, types.StatusCode(outcome.Err))
	assert.Equal(t, "Error: unexpected status code: 404 Not Found", outcome.Message())

	assert.False(t, testutil.FileExists(destPath), "no file is created for a failed status")

	require.Len(t, msgs, 1)
	_, isErr := msgs[0].(events.DownloadErrorMsg)
	assert.True(t, isErr)
}

func TestDownloader_NetworkError(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-neterr")
	defer cleanup()

	server := testutil.NewMockServerT(t)
	url := server.URL()
	server.Close() // Nothing listens there any more.

	d := newTestDownloader(t, nil)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: url, DestPath: filepath.Join(tmpDir, "x.bin")}, neverCancel{})

	require.Equal(t, types.Failed, outcome.Kind)
	kind, _ := types.KindOf(outcome.Err)
	assert.Equal(t, types.NetworkError, kind)
}

func TestDownloader_InvalidURL(t *testing.T) {
	d := newTestDownloader(t, nil)
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: "not a url", DestPath: filepath.Join(t.TempDir(), "x")}, neverCancel{})

	require.Equal(t, types.Failed, outcome.Kind)
	kind, _ := types.KindOf(outcome.Err)
	assert.Equal(t, types.NetworkError, kind)
}

func TestDownloader_InvalidDestination(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-baddest")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithFileSize(1024))
	defer server.Close()

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "nonexistent", "subdir", "out.bin")
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})

	require.Equal(t, types.Failed, outcome.Kind)
	kind, _ := types.KindOf(outcome.Err)
	assert.Equal(t, types.FilesystemError, kind)
	assert.False(t, testutil.FileExists(filepath.Join(tmpDir, "nonexistent")), "no directories are created")
}

func TestDownloader_DestinationLocked(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-locked")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithFileSize(1024))
	defer server.Close()

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "locked.bin")

	lock, err := lockDestination(d.Runtime.GetLockDir(), destPath)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})
	require.Equal(t, types.Failed, outcome.Kind)
	kind, _ := types.KindOf(outcome.Err)
	assert.Equal(t, types.FilesystemError, kind)
}

func TestDownloader_FailMidTransferKeepsPartialFile(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-failafter")
	defer cleanup()

	fileSize := int64(256 * types.KB)
	// Server fails after sending 64KB
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithFailAfterBytes(64*types.KB),
	)
	defer server.Close()

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "partial.bin")
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, neverCancel{})

	require.Equal(t, types.Failed, outcome.Kind)
	kind, _ := types.KindOf(outcome.Err)
	assert.Equal(t, types.IOError, kind)

	info, err := os.Stat(destPath)
	require.NoError(t, err, "partial file is left on disk")
	assert.Equal(t, outcome.Transferred, info.Size())
	assert.Less(t, info.Size(), fileSize)
}

// =============================================================================
// Downloader - Cancellation
// =============================================================================

func TestDownloader_CancelBeforeFirstChunk(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-precancel")
	defer cleanup()

	server := testutil.NewMockServerT(t, testutil.WithFileSize(64*types.KB))
	defer server.Close()

	signal := &flagSignal{}
	signal.Store(true)

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "precancel.bin")
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, signal)

	require.Equal(t, types.Cancelled, outcome.Kind)
	assert.Equal(t, "Download was cancelled.", outcome.Message())
	assert.Zero(t, outcome.Transferred)
	assert.NoError(t, testutil.VerifyFileSize(destPath, 0))
	assert.True(t, d.State.Cancelled.Load())
}

func TestDownloader_CancelLatencyOneChunk(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-latency")
	defer cleanup()

	fileSize := int64(1 * types.MB)
	server := testutil.NewMockServerT(t, testutil.WithFileSize(fileSize))
	defer server.Close()

	// Three clean checks, i.e. at most three reads, then cancelled.
	signal := &cancelAfterChecks{n: 3}

	d := newTestDownloader(t, nil)
	destPath := filepath.Join(tmpDir, "latency.bin")
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, signal)

	require.Equal(t, types.Cancelled, outcome.Kind)
	assert.Equal(t, int64(4), signal.checks.Load(), "loop exits on the first check that sees the signal")
	assert.LessOrEqual(t, outcome.Transferred, int64(3*types.ChunkSize))
	assert.NoError(t, testutil.VerifyFileSize(destPath, outcome.Transferred), "partial file is kept, not deleted")
}

func TestDownloader_CancelFromProgressObserver(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-observer")
	defer cleanup()

	fileSize := int64(2 * types.MB)
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(fileSize),
		testutil.WithChunks(types.ChunkSize, 2*time.Millisecond),
	)
	defer server.Close()

	signal := &flagSignal{}
	var cancelledAt atomic.Int64
	log := newEventLog(func(msg any) {
		if p, ok := msg.(events.ProgressMsg); ok && p.Downloaded >= 32*types.KB && !signal.Load() {
			cancelledAt.Store(p.Downloaded)
			signal.Store(true)
		}
	})

	d := newTestDownloader(t, log.ch)
	destPath := filepath.Join(tmpDir, "observer.bin")
	outcome := d.Download(context.Background(), types.DownloadRequest{URL: server.URL(), DestPath: destPath}, signal)
	msgs := log.close()

	require.Equal(t, types.Cancelled, outcome.Kind)
	// Set while N bytes remained: at most one more chunk is read and written.
	assert.LessOrEqual(t, outcome.Transferred, cancelledAt.Load()+int64(types.ChunkSize))
	assert.NoError(t, testutil.VerifyFileSize(destPath, outcome.Transferred))

	last := msgs[len(msgs)-1]
	cancelled, ok := last.(events.DownloadCancelledMsg)
	require.True(t, ok, "last event should be DownloadCancelledMsg, got %T", last)
	assert.Equal(t, outcome.Transferred, cancelled.Downloaded)
}

func TestDownloader_ContextCancellation(t *testing.T) {
	tmpDir, cleanup, _ := testutil.TempDir("trackload-ctx")
	defer cleanup()

	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(5*types.MB),
		testutil.WithChunks(16*types.KB, 5*time.Millisecond),
	)
	defer server.Close()

	d := newTestDownloader(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan types.Outcome, 1)
	go func() {
		done <- d.Download(ctx, types.DownloadRequest{URL: server.URL(), DestPath: filepath.Join(tmpDir, "ctx.bin")}, neverCancel{})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, types.Cancelled, outcome.Kind, outcome.Message())
	case <-time.After(5 * time.Second):
		t.Fatal("Download didn't respond to context cancellation")
	}
}
