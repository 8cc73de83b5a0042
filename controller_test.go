package dirserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/connet-dev/dirserve/pkg/slogc"
	"github.com/connet-dev/dirserve/pkg/statusc"
	"github.com/stretchr/testify/require"
)

var errSeen = errors.New("seen")

func testController(t *testing.T) (*Controller, context.CancelFunc, <-chan error) {
	t.Helper()
	c, err := NewController(ServerPort(0), ServerLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-c.done
	})
	return c, cancel, errCh
}

func waitState(t *testing.T, c *Controller, state statusc.State) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var last Status
	err := c.Listen(ctx, func(s Status) error {
		last = s
		if s.State == state {
			return errSeen
		}
		return nil
	})
	require.ErrorIs(t, err, errSeen, "last status %+v", last)
	return last
}

func TestControllerToggle(t *testing.T) {
	first := testSite(t, map[string]string{"a.txt": "first"})
	second := testSite(t, map[string]string{"a.txt": "second"})
	ctx := context.Background()

	c, _, _ := testController(t)
	require.Equal(t, statusc.Idle, c.Status().State)

	require.ErrorIs(t, c.Start(ctx), ErrNoRoot)
	require.ErrorIs(t, c.Stop(ctx), ErrAlreadyStopped)
	require.ErrorIs(t, c.Select(ctx, filepath.Join(first, "missing")), ErrInvalidRoot)
	require.ErrorIs(t, c.Select(ctx, filepath.Join(first, "a.txt")), ErrInvalidRoot)

	require.NoError(t, c.Select(ctx, first))
	require.NoError(t, c.Toggle(ctx))

	status := c.Status()
	require.Equal(t, statusc.Running, status.State)
	require.NotEmpty(t, status.URL)
	require.NotEmpty(t, status.Run)

	_, body, _ := fetch(t, status.URL+"/a.txt")
	require.Equal(t, "first", string(body))

	require.ErrorIs(t, c.Select(ctx, second), ErrAlreadyRunning)
	require.ErrorIs(t, c.Start(ctx), ErrAlreadyRunning)

	require.NoError(t, c.Toggle(ctx))
	require.Equal(t, statusc.Idle, c.Status().State)

	require.NoError(t, c.Select(ctx, second))
	require.NoError(t, c.Start(ctx))

	status = c.Status()
	_, body, _ = fetch(t, status.URL+"/a.txt")
	require.Equal(t, "second", string(body))

	require.NoError(t, c.Stop(ctx))
	require.ErrorIs(t, c.Stop(ctx), ErrAlreadyStopped)

	resolved, err := filepath.EvalSymlinks(second)
	require.NoError(t, err)
	require.Equal(t, Status{State: statusc.Idle, Root: resolved}, c.Status())
}

func TestControllerListen(t *testing.T) {
	root := testSite(t, map[string]string{"a.txt": "a"})
	ctx := context.Background()

	c, _, _ := testController(t)
	require.NoError(t, c.Select(ctx, root))

	require.NoError(t, c.Start(ctx))
	running := waitState(t, c, statusc.Running)
	require.NotEmpty(t, running.URL)

	require.NoError(t, c.Stop(ctx))
	idle := waitState(t, c, statusc.Idle)
	require.Empty(t, idle.URL)
}

func TestControllerRunStopsServer(t *testing.T) {
	root := testSite(t, map[string]string{"a.txt": "a"})
	ctx := context.Background()

	c, cancel, errCh := testController(t)
	require.NoError(t, c.Select(ctx, root))
	require.NoError(t, c.Start(ctx))
	url := c.Status().URL

	cancel()
	require.NoError(t, <-errCh)

	_, err := testClient.Get(url + "/a.txt")
	require.Error(t, err)

	require.ErrorIs(t, c.Start(ctx), errControllerClosed)
	require.NoError(t, c.Listen(ctx, func(Status) error { return nil }))
}

func TestControllerStatusEndpoint(t *testing.T) {
	root := testSite(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, _, _ := testController(t)
	require.NoError(t, c.Select(ctx, root))
	require.NoError(t, c.Start(ctx))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = statusc.Serve(ctx, l, func(ctx context.Context) (Status, error) {
			return c.Status(), nil
		})
	}()

	resp, err := testClient.Get("http://" + l.Addr().String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, c.Status(), status)
	require.Equal(t, statusc.Running, status.State)
}

func TestControllerServerExit(t *testing.T) {
	root := testSite(t, map[string]string{"a.txt": "a"})
	ctx := context.Background()

	var logs bytes.Buffer
	logger, err := slogc.NewWriter(&logs, "fine", "text")
	require.NoError(t, err)

	c, err := NewController(ServerPort(0), ServerLogger(logger))
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(runCtx)
	}()

	require.NoError(t, c.Select(ctx, root))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.handle.listener.Close())

	idle := waitState(t, c, statusc.Idle)
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.Equal(t, Status{State: statusc.Idle, Root: resolved}, idle)

	require.NoError(t, c.Start(ctx))
	require.Equal(t, statusc.Running, c.Status().State)

	cancel()
	require.NoError(t, <-errCh)

	require.Contains(t, logs.String(), "server exited unexpectedly")
	require.Contains(t, logs.String(), "error stopping exited server")
}
