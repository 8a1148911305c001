// File: command/client.go
// Author: momentics <momentics@gmail.com>

package command

import (
	"fmt"

	"github.com/momentics/hioload-mt/api"
)

// Client is a requester handle. The zero Client is invalid. A Client must
// not outlive its Processor.
type Client struct {
	p    *Processor
	user api.User
}

// Valid reports whether the client is bound to a usable processor.
func (c *Client) Valid() bool { return c != nil && c.p.Valid() }

// User returns the client's tag.
func (c *Client) User() api.User { return c.user }

// Move transfers the binding to a new handle and invalidates c.
func (c *Client) Move() *Client {
	out := &Client{p: c.p, user: c.user}
	c.p = nil
	return out
}

// Request lends cmd to the consumer and blocks until Logic.Process has
// returned, yielding its error. The caller keeps ownership of cmd.
func (c *Client) Request(cmd Command) error {
	if err := c.check(cmd); err != nil {
		return err
	}
	c.p.settings.Metrics.RecordPosted(c.p.settings.Name, 1)
	return c.p.request(cmd)
}

// AsyncRequest hands cmd over and blocks until the consumer accepted it.
// Logic.AsyncProcess then owns cmd.
func (c *Client) AsyncRequest(cmd Command) error {
	if err := c.check(cmd); err != nil {
		return err
	}
	c.p.settings.Metrics.RecordPosted(c.p.settings.Name, 1)
	return c.p.asyncRequest(cmd)
}

func (c *Client) check(cmd Command) error {
	if !c.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if cmd == nil {
		err := fmt.Errorf("command %s: %w: nil command", c.p.settings.Name, api.ErrInvalidArgument)
		c.p.settings.Metrics.RecordError(c.p.settings.Name, api.ErrCodeInvalidArgument.String())
		c.p.settings.Logger.Warning().
			Str("processor", c.p.settings.Name).
			Int64("user", int64(c.user)).
			Err(err).
			Log("command rejected")
		return err
	}
	return nil
}
