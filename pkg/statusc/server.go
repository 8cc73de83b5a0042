package statusc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/connet-dev/dirserve/pkg/slogc"
)

func Run[T any](ctx context.Context, addr *net.TCPAddr, f func(ctx context.Context) (T, error)) error {
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listen: %w", err)
	}
	return Serve(ctx, l, f)
}

// Serve answers every request on l with the JSON encoded result of f,
// until ctx is done.
func Serve[T any](ctx context.Context, l net.Listener, f func(ctx context.Context) (T, error)) error {
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stat, err := f(r.Context())
			if err == nil {
				w.Header().Add("Content-Type", "application/json")
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				err = enc.Encode(stat)
			}
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				if _, err := fmt.Fprintf(w, "server error: %v", err.Error()); err != nil {
					slogc.FineDefault("error writing server error", "err", err)
				}
			}
		}),
	}

	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			slogc.FineDefault("error closing status server", "err", err)
		}
	}()

	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
