package dirserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/connet-dev/dirserve/pkg/notify"
	"github.com/connet-dev/dirserve/pkg/slogc"
	"github.com/connet-dev/dirserve/pkg/statusc"
)

// Status is what a Controller publishes after each transition.
type Status struct {
	State statusc.State `json:"state"`
	Root  string        `json:"root,omitempty"`
	URL   string        `json:"url,omitempty"`
	Run   string        `json:"run,omitempty"`
}

type commandKind int

const (
	commandSelect commandKind = iota
	commandStart
	commandStop
	commandToggle
)

type command struct {
	kind  commandKind
	root  string
	reply chan error
}

// Controller owns at most one running Handle. Callers never touch the handle
// directly, they send commands which Run executes one at a time, and observe
// the outcome through Status and Listen.
type Controller struct {
	opts   []ServerOption
	logger *slog.Logger

	cmds   chan command
	done   chan struct{}
	status *notify.V[Status]

	// only accessed by Run
	root   string
	handle *Handle
}

func NewController(opts ...ServerOption) (*Controller, error) {
	cfg, err := newServerConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Controller{
		opts:   opts,
		logger: cfg.logger.With("component", "controller"),

		cmds:   make(chan command),
		done:   make(chan struct{}),
		status: notify.New(Status{State: statusc.Idle}),
	}, nil
}

// Run executes commands until ctx is done. A running server is stopped
// before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	defer c.status.Close()
	defer close(c.done)

	for {
		var handleDone <-chan struct{}
		if c.handle != nil {
			handleDone = c.handle.Done()
		}

		select {
		case <-ctx.Done():
			if c.handle != nil {
				return c.stop()
			}
			return nil
		case <-handleDone:
			c.logger.Warn("server exited unexpectedly", "err", c.handle.Err())
			if err := c.stop(); err != nil {
				slogc.Fine(c.logger, "error stopping exited server", "err", err)
			}
		case cmd := <-c.cmds:
			var err error
			switch cmd.kind {
			case commandSelect:
				err = c.selectRoot(cmd.root)
			case commandStart:
				err = c.start()
			case commandStop:
				err = c.stop()
			case commandToggle:
				if c.handle == nil {
					err = c.start()
				} else {
					err = c.stop()
				}
			default:
				err = fmt.Errorf("unknown command %d", cmd.kind)
			}
			cmd.reply <- err
		}
	}
}

func (c *Controller) selectRoot(selected string) error {
	if c.handle != nil {
		return fmt.Errorf("select %s: %w", selected, ErrAlreadyRunning)
	}

	resolved, err := ResolveRoot(selected)
	if err != nil {
		return err
	}

	c.root = resolved
	c.status.Set(Status{State: statusc.Idle, Root: resolved})
	c.logger.Debug("selected directory", "root", resolved)
	return nil
}

func (c *Controller) start() error {
	switch {
	case c.handle != nil:
		return fmt.Errorf("start: %w", ErrAlreadyRunning)
	case c.root == "":
		return fmt.Errorf("start: %w", ErrNoRoot)
	}

	c.status.Set(Status{State: statusc.Starting, Root: c.root})
	h, err := Start(c.root, c.opts...)
	if err != nil {
		c.status.Set(Status{State: statusc.Idle, Root: c.root})
		return err
	}

	c.handle = h
	c.status.Set(h.Status())
	return nil
}

func (c *Controller) stop() error {
	h := c.handle
	if h == nil {
		return fmt.Errorf("stop: %w", ErrAlreadyStopped)
	}

	stopping := h.Status()
	stopping.State = statusc.Stopping
	c.status.Set(stopping)
	err := h.Stop()
	c.handle = nil
	c.status.Set(Status{State: statusc.Idle, Root: c.root})
	return err
}

// Select chooses the directory the next Start serves. It fails with
// ErrAlreadyRunning while a server is running.
func (c *Controller) Select(ctx context.Context, root string) error {
	return c.send(ctx, command{kind: commandSelect, root: root})
}

func (c *Controller) Start(ctx context.Context) error {
	return c.send(ctx, command{kind: commandStart})
}

// Stop blocks until the running server is fully stopped.
func (c *Controller) Stop(ctx context.Context) error {
	return c.send(ctx, command{kind: commandStop})
}

// Toggle starts the server when idle and stops it when running.
func (c *Controller) Toggle(ctx context.Context) error {
	return c.send(ctx, command{kind: commandToggle})
}

func (c *Controller) Status() Status {
	s, _ := c.status.Peek()
	return s
}

// Listen calls f with the current status and every change after it, until
// f fails, ctx is done or the controller stops running.
func (c *Controller) Listen(ctx context.Context, f func(Status) error) error {
	err := c.status.Listen(ctx, f)
	if errors.Is(err, notify.ErrClosed) {
		return nil
	}
	return err
}

func (c *Controller) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)

	select {
	case c.cmds <- cmd:
	case <-c.done:
		return errControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
