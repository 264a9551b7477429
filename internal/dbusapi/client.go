// Package dbusapi is the low-level transport layer shared by every proxy in
// this module. It owns a private system-bus connection and provides method
// calls with retry, property access and signal subscription on top of
// godbus. Proxies never touch the bus directly.
package dbusapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/internal/log"
)

const (
	// DefaultTimeout bounds a single method call when the caller's context
	// carries no deadline.
	DefaultTimeout = 15 * time.Second

	retriesAllowed = 10
	retryDelay     = time.Second
)

const propsInterface = "org.freedesktop.DBus.Properties"

// Client wraps a private system-bus connection scoped to one destination
// (well-known bus name). Method calls that fail with one of the configured
// retryable D-Bus error names are retried with a fixed backoff; NetworkManager
// briefly answers UnknownConnection while a freshly added profile settles.
type Client struct {
	conn       *dbus.Conn
	dest       string
	timeout    time.Duration
	retryNames []string
}

// Connect opens a private system-bus connection for dest.
func Connect(dest string, timeout time.Duration, retryNames ...string) (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		conn:       conn,
		dest:       dest,
		timeout:    timeout,
		retryNames: retryNames,
	}, nil
}

// Conn exposes the underlying bus connection for object export (secret agent).
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

// Timeout returns the per-call timeout applied when a context has no deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes method (full "interface.Member" name) on path at the client's
// destination and stores the reply values into out.
func (c *Client) Call(ctx context.Context, path dbus.ObjectPath, method string, out []interface{}, args ...interface{}) error {
	return c.CallOn(ctx, c.dest, path, method, out, args...)
}

// CallOn is Call against an explicit destination; the systemd unit proxy uses
// it to reach org.freedesktop.systemd1 over the same connection.
func (c *Client) CallOn(ctx context.Context, dest string, path dbus.ObjectPath, method string, out []interface{}, args ...interface{}) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	obj := c.conn.Object(dest, path)

	var lastErr error
	for attempt := 0; attempt < retriesAllowed; attempt++ {
		call := obj.CallWithContext(ctx, method, 0, args...)
		if call.Err == nil {
			if len(out) == 0 {
				return nil
			}
			if err := call.Store(out...); err != nil {
				return fmt.Errorf("%s call on %s: bad reply type: %w", method, path, err)
			}
			return nil
		}

		lastErr = call.Err
		if !c.shouldRetry(call.Err) {
			break
		}

		log.Debugf("retrying %s on %s: attempt #%d", method, path, attempt+1)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s call on %s: %w", method, path, ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return fmt.Errorf("%s call on %s failed: %w", method, path, lastErr)
}

func (c *Client) shouldRetry(err error) bool {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		return false
	}
	for _, name := range c.retryNames {
		if dbusErr.Name == name {
			return true
		}
	}
	return false
}

// Property reads iface.name on path via org.freedesktop.DBus.Properties.
func (c *Client) Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var v dbus.Variant
	call := c.conn.Object(c.dest, path).CallWithContext(ctx, propsInterface+".Get", 0, iface, name)
	if call.Err != nil {
		return v, fmt.Errorf("get %s.%s property on %s: %w", iface, name, path, call.Err)
	}
	if err := call.Store(&v); err != nil {
		return v, fmt.Errorf("get %s.%s property on %s: bad reply type: %w", iface, name, path, err)
	}
	return v, nil
}

// PropertyOn is Property against an explicit destination.
func (c *Client) PropertyOn(ctx context.Context, dest string, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var v dbus.Variant
	call := c.conn.Object(dest, path).CallWithContext(ctx, propsInterface+".Get", 0, iface, name)
	if call.Err != nil {
		return v, fmt.Errorf("get %s.%s property on %s: %w", iface, name, path, call.Err)
	}
	if err := call.Store(&v); err != nil {
		return v, fmt.Errorf("get %s.%s property on %s: bad reply type: %w", iface, name, path, err)
	}
	return v, nil
}

// SetProperty writes iface.name on path. The value is wrapped in a variant
// here so callers pass plain Go values.
func (c *Client) SetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string, value interface{}) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	call := c.conn.Object(c.dest, path).CallWithContext(ctx, propsInterface+".Set", 0, iface, name, dbus.MakeVariant(value))
	if call.Err != nil {
		return fmt.Errorf("set %s.%s property on %s: %w", iface, name, path, call.Err)
	}
	return nil
}

// Subscribe adds a signal match and routes matching signals into ch. The
// channel should be buffered; godbus drops signals on a full channel.
func (c *Client) Subscribe(ch chan *dbus.Signal, options ...dbus.MatchOption) error {
	if err := c.conn.AddMatchSignal(options...); err != nil {
		return fmt.Errorf("failed to add signal match: %w", err)
	}
	c.conn.Signal(ch)
	return nil
}

// Unsubscribe removes the signal match and detaches ch.
func (c *Client) Unsubscribe(ch chan *dbus.Signal, options ...dbus.MatchOption) error {
	c.conn.RemoveSignal(ch)
	if err := c.conn.RemoveMatchSignal(options...); err != nil {
		return fmt.Errorf("failed to remove signal match: %w", err)
	}
	return nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
