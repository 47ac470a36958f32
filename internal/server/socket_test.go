package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"hope/internal/pianobar"
)

// tempSocketPath keeps paths well under the sun_path limit.
func tempSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hope")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "hope.sock")
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	return logger, hook
}

// startServer binds a server and runs Serve in the background. The returned
// channel yields Serve's result.
func startServer(t *testing.T, consumer Consumer, logger *logrus.Logger) (*SocketServer, context.CancelFunc, <-chan error) {
	t.Helper()

	srv := NewSocketServer(tempSocketPath(t), consumer, logger)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- srv.Serve(ctx)
		close(finished)
	}()

	t.Cleanup(func() {
		cancel()
		srv.Stop()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Stop")
		}
	})
	return srv, cancel, done
}

func testEvent(cmd pianobar.EventCmd, stations ...string) pianobar.Event {
	return pianobar.NewEvent(cmd, pianobar.Info{
		PianobarStatus: pianobar.PianobarStatus{Code: 1, Message: "Everything is fine :)"},
		CurlStatus:     pianobar.CurlStatus{Code: 0, Message: "No error"},
		Stations:       stations,
	})
}

func sendRaw(t *testing.T, path string, payload []byte) {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.UnixConn).CloseWrite())
}

func TestSocketServer_NewWithDefaultPath(t *testing.T) {
	logger, _ := newTestLogger()
	server := NewSocketServer("", nil, logger)

	if server.SocketPath() != DefaultSocketPath {
		t.Errorf("expected default path %s, got %s", DefaultSocketPath, server.SocketPath())
	}
	if server.Addr() != nil {
		t.Errorf("expected nil addr before Start, got %v", server.Addr())
	}
}

func TestSocketServer_StartAndStop(t *testing.T) {
	logger, _ := newTestLogger()
	socketPath := tempSocketPath(t)
	server := NewSocketServer(socketPath, NewRecorder(), logger)

	require.NoError(t, server.Start())
	info, err := os.Stat(socketPath)
	require.NoError(t, err, "socket file was not created")
	assert.Equal(t, os.ModeSocket, info.Mode().Type())
	assert.Equal(t, socketPath, server.Addr().String())

	server.Stop()
	_, err = os.Stat(socketPath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket file was not removed on Stop")

	// A second Stop is a no-op.
	server.Stop()
}

func TestSocketServer_StartTwice(t *testing.T) {
	logger, _ := newTestLogger()
	server := NewSocketServer(tempSocketPath(t), NewRecorder(), logger)
	require.NoError(t, server.Start())
	defer server.Stop()

	assert.Error(t, server.Start())
}

func TestSocketServer_RemovesStaleEntry(t *testing.T) {
	logger, _ := newTestLogger()
	socketPath := tempSocketPath(t)
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	server := NewSocketServer(socketPath, NewRecorder(), logger)
	require.NoError(t, server.Start())
	defer server.Stop()

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode().Type())
}

func TestSocketServer_StartFailsWithoutDirectory(t *testing.T) {
	logger, _ := newTestLogger()
	socketPath := filepath.Join(tempSocketPath(t)+".missing", "hope.sock")
	server := NewSocketServer(socketPath, NewRecorder(), logger)

	err := server.Start()
	var terr *TransportError
	require.True(t, errors.As(err, &terr), "expected *TransportError, got %v", err)
	assert.Equal(t, "listen", terr.Op)
}

func TestSocketServer_ServeBeforeStart(t *testing.T) {
	logger, _ := newTestLogger()
	server := NewSocketServer(tempSocketPath(t), NewRecorder(), logger)
	assert.Error(t, server.Serve(context.Background()))
}

func TestSocketServer_DeliversEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumer(ctrl)
	logger, _ := newTestLogger()

	want := testEvent(pianobar.UserLogin)
	received := make(chan struct{})
	consumer.EXPECT().
		Consume(gomock.Any(), gomock.Eq(want)).
		Do(func(context.Context, pianobar.Event) { close(received) }).
		Return(nil)

	srv, _, _ := startServer(t, consumer, logger)
	require.NoError(t, NewClient(srv.SocketPath(), logger).Send(context.Background(), want))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not called")
	}
}

func TestSocketServer_PreservesAcceptOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumer(ctrl)
	logger, _ := newTestLogger()

	events := []pianobar.Event{
		testEvent(pianobar.SongStart, "A"),
		testEvent(pianobar.SongFinish, "B"),
		testEvent(pianobar.SongStart, "C"),
	}
	done := make(chan struct{})
	gomock.InOrder(
		consumer.EXPECT().Consume(gomock.Any(), gomock.Eq(events[0])).Return(nil),
		consumer.EXPECT().Consume(gomock.Any(), gomock.Eq(events[1])).Return(nil),
		consumer.EXPECT().Consume(gomock.Any(), gomock.Eq(events[2])).
			Do(func(context.Context, pianobar.Event) { close(done) }).
			Return(nil),
	)

	srv, _, _ := startServer(t, consumer, logger)
	client := NewClient(srv.SocketPath(), logger)
	for _, ev := range events {
		require.NoError(t, client.Send(context.Background(), ev))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all events were consumed")
	}
}

func TestSocketServer_DecodeErrorKeepsServing(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumer(ctrl)
	logger, hook := newTestLogger()

	want := testEvent(pianobar.SongLove)
	received := make(chan struct{})
	consumer.EXPECT().
		Consume(gomock.Any(), gomock.Eq(want)).
		Do(func(context.Context, pianobar.Event) { close(received) }).
		Return(nil)

	srv, _, done := startServer(t, consumer, logger)
	sendRaw(t, srv.SocketPath(), []byte("lolwut"))

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			err, _ := e.Data[logrus.ErrorKey].(error)
			var derr *pianobar.DecodeError
			if e.Level == logrus.WarnLevel && errors.As(err, &derr) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "decode failure was not logged")

	select {
	case err := <-done:
		t.Fatalf("Serve returned after a bad payload: %v", err)
	default:
	}

	require.NoError(t, NewClient(srv.SocketPath(), logger).Send(context.Background(), want))
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("server stopped serving after a bad payload")
	}
}

func TestSocketServer_EmptyConnectionIsDropped(t *testing.T) {
	recorder := NewRecorder()
	logger, hook := newTestLogger()
	srv, _, _ := startServer(t, recorder, logger)

	sendRaw(t, srv.SocketPath(), nil)

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Dropped client connection" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, recorder.Received())
}

func TestSocketServer_ConsumerErrorKeepsServing(t *testing.T) {
	logger, hook := newTestLogger()
	calls := make(chan pianobar.Event, 2)
	consumer := ConsumerFunc(func(_ context.Context, ev pianobar.Event) error {
		calls <- ev
		return errors.New("boom")
	})
	srv, _, _ := startServer(t, consumer, logger)
	client := NewClient(srv.SocketPath(), logger)

	for i := 0; i < 2; i++ {
		require.NoError(t, client.Send(context.Background(), testEvent(pianobar.SongBan)))
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not consumed", i)
		}
	}

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Consumer failed" && e.Level == logrus.ErrorLevel {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocketServer_CancelStopsServe(t *testing.T) {
	logger, _ := newTestLogger()
	srv, cancel, done := startServer(t, NewRecorder(), logger)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, err := os.Stat(srv.SocketPath())
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket file left behind after cancel")
}

func TestSocketServer_CancelClosesStalledConnection(t *testing.T) {
	logger, hook := newTestLogger()
	srv, cancel, done := startServer(t, NewRecorder(), logger)

	conn, err := net.DialTimeout("unix", srv.SocketPath(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Received new client connection" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve blocked on a peer that never finished writing")
	}

	// The server side is closed, so the peer sees EOF.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

// flakyListener fails Accept a few times, then blocks until closed.
type flakyListener struct {
	failures int
	closed   chan struct{}
	once     sync.Once
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures > 0 {
		l.failures--
		return nil, syscall.EMFILE
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *flakyListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *flakyListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "flaky", Net: "unix"}
}

func TestSocketServer_AcceptErrorKeepsServing(t *testing.T) {
	logger, hook := newTestLogger()
	srv := NewSocketServer(tempSocketPath(t), NewRecorder(), logger)
	srv.listener = &flakyListener{failures: 3, closed: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	require.Eventually(t, func() bool {
		n := 0
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && strings.HasPrefix(e.Message, "Accept failed") {
				n++
			}
		}
		return n == 3
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Serve returned after a transient accept error: %v", err)
	default:
	}

	srv.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
