package netc

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/connet-dev/dirserve/pkg/slogc"
	"golang.org/x/sync/errgroup"
)

// Serve runs srv on l until stop is closed or ctx is done. The server is then
// closed together with every connection it has open, in-flight requests are
// not waited for. Serve returns after both the accept loop and the closing
// have finished.
func Serve(ctx context.Context, srv *http.Server, l net.Listener, stop <-chan struct{}) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Serve leaves l open when the server was closed before it started
		defer func() { _ = l.Close() }()
		if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-stop:
		case <-ctx.Done():
		}
		if err := srv.Close(); err != nil {
			slogc.FineDefault("error closing http server", "err", err)
		}
		return nil
	})

	return g.Wait()
}
