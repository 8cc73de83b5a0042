package dirserve

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/connet-dev/dirserve/pkg/dirindex"
	"github.com/connet-dev/dirserve/pkg/netc"
	"github.com/connet-dev/dirserve/pkg/slogc"
	"github.com/connet-dev/dirserve/pkg/statusc"
	"github.com/segmentio/ksuid"
)

// Handle is a single server run, returned by Start. It must be stopped
// exactly once with Stop before the same port can be used again.
type Handle struct {
	id       ksuid.KSUID
	root     string
	addr     net.Addr
	listener net.Listener
	url      string
	hasIndex bool
	listing  *dirindex.Listing
	files    *os.Root
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	err  error

	mu    sync.Mutex
	state statusc.State
}

// Start serves root on the configured loopback port. When root has no
// index.html, a listing of every file under it is built once and served at
// "/". Start returns once the listener is bound and serving.
func Start(root string, opts ...ServerOption) (*Handle, error) {
	cfg, err := newServerConfig(opts)
	if err != nil {
		return nil, err
	}

	root, err = ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	hasIndex, err := dirindex.HasIndex(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexRead, err)
	}

	files, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexRead, err)
	}

	l, err := net.Listen("tcp", cfg.address())
	if err != nil {
		closeRoot(files)
		return nil, fmt.Errorf("%w %s: %w", ErrBind, cfg.address(), err)
	}

	h := &Handle{
		id:       ksuid.New(),
		root:     root,
		addr:     l.Addr(),
		listener: l,
		url:      "http://" + l.Addr().String(),
		hasIndex: hasIndex,
		files:    files,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    statusc.Starting,
	}
	h.logger = cfg.logger.With("run", h.id, "root", root, "addr", h.addr)

	mux := http.NewServeMux()
	if !hasIndex {
		listing, err := dirindex.BuildListing(root, h.url)
		if err != nil {
			closeListener(l)
			closeRoot(files)
			return nil, fmt.Errorf("%w: %w", ErrIndexRead, err)
		}
		h.listing = listing
		mux.HandleFunc("GET /{$}", h.serveListing)
	}
	mux.Handle("/", netc.NewFileServer(files.FS()))

	srv := &http.Server{
		Handler:           h.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(h.logger.Handler(), slog.LevelDebug),
	}

	go h.run(srv)

	h.setState(statusc.Running)
	if hasIndex {
		h.logger.Info("serving directory", "url", h.url)
	} else {
		h.logger.Info("serving directory listing", "url", h.url, "files", len(h.listing.Entries))
	}
	return h, nil
}

// ResolveRoot turns root into an absolute path without symlinks, failing
// with ErrInvalidRoot when it is not an existing directory.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	return abs, nil
}

func (h *Handle) run(srv *http.Server) {
	defer close(h.done)

	h.err = netc.Serve(context.Background(), srv, h.listener, h.stop)
	if h.err != nil {
		h.logger.Warn("server failed", "err", h.err)
	}
}

// Stop signals the server to close and blocks until it has. Active
// connections are dropped. The port is free once Stop returns. Stopping a
// handle twice fails with ErrAlreadyStopped.
func (h *Handle) Stop() error {
	if h == nil {
		return fmt.Errorf("stop: %w", ErrAlreadyStopped)
	}

	h.mu.Lock()
	if h.state != statusc.Running {
		h.mu.Unlock()
		return fmt.Errorf("stop %s: %w", h.id, ErrAlreadyStopped)
	}
	h.state = statusc.Stopping
	h.mu.Unlock()

	h.logger.Debug("stopping server")
	close(h.stop)
	<-h.done
	closeRoot(h.files)

	h.setState(statusc.Idle)
	h.logger.Info("server stopped")
	return h.err
}

// Done is closed when the server is no longer serving, either because it
// was stopped or because it failed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the reason the server stopped serving, nil while running or when
// stopped normally.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *Handle) ID() ksuid.KSUID {
	return h.id
}

func (h *Handle) Root() string {
	return h.root
}

func (h *Handle) Addr() net.Addr {
	return h.addr
}

// URL is the base address, like http://127.0.0.1:9234.
func (h *Handle) URL() string {
	return h.url
}

func (h *Handle) HasIndex() bool {
	return h.hasIndex
}

// Listing is the page served at "/", nil when root has an index.html.
func (h *Handle) Listing() *dirindex.Listing {
	return h.listing
}

func (h *Handle) State() statusc.State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// Status describes the handle the way a Controller publishes it.
func (h *Handle) Status() Status {
	return Status{
		State: h.State(),
		Root:  h.root,
		URL:   h.url,
		Run:   h.id.String(),
	}
}

func (h *Handle) setState(state statusc.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = state
}

func (h *Handle) serveListing(w http.ResponseWriter, r *http.Request) {
	http.ServeContent(w, r, dirindex.IndexName, h.listing.Built, bytes.NewReader(h.listing.Page))
}

func (h *Handle) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slogc.Fine(h.logger, "request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func closeRoot(root *os.Root) {
	if err := root.Close(); err != nil {
		slogc.FineDefault("error closing root", "err", err)
	}
}

func closeListener(l net.Listener) {
	if err := l.Close(); err != nil {
		slogc.FineDefault("error closing listener", "err", err)
	}
}
