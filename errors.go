package dirserve

import "errors"

var (
	// ErrInvalidRoot is returned when the directory to serve does not exist or
	// is not a directory.
	ErrInvalidRoot = errors.New("invalid root")
	// ErrIndexRead is returned when the root cannot be listed to look for an
	// index.html.
	ErrIndexRead = errors.New("cannot read root")
	// ErrBind is returned when the listener cannot be bound, usually because
	// the port is in use.
	ErrBind = errors.New("cannot bind")
	// ErrAlreadyStopped is returned when stopping a handle that is not running.
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrAlreadyRunning is returned by the controller when starting or
	// selecting a directory while a server is running.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNoRoot is returned by the controller when starting without a
	// selected directory.
	ErrNoRoot = errors.New("no directory selected")
)

var errControllerClosed = errors.New("controller is not running")
