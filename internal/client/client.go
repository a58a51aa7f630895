// Package client implements the TCP client side of internal/protocol,
// grounded on original_source/src/client.rs's KvsClient: one persistent
// connection, request/response round trips, and a graceful Close that
// aborts any further sends.
package client

import (
	"bufio"
	"errors"
	"net"
	"sync/atomic"

	"github.com/arrowkv/kvs/internal/protocol"
)

// ErrClosed is returned by Set/Get/Remove after Close has been called.
var ErrClosed = errors.New("client: connection closed")

// ErrServer wraps the string a server sent back in an Err response (spec
// §6: REMOVE of an absent key, or any other propagated engine error).
type ErrServer struct {
	Message string
}

func (e *ErrServer) Error() string { return e.Message }

// Client is a single connection to a kvs-server instance. It is not safe
// for concurrent use by multiple goroutines — like the Rust original, one
// Client serializes its own request/response pairs on one socket.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	closed atomic.Bool
}

// Dial connects to addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}, nil
}

// Close shuts down the underlying connection and marks the client
// unusable for further sends, mirroring KvsClient::shutdown.
func (c *Client) Close() error {
	c.closed.Store(true)
	return c.conn.Close()
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if c.closed.Load() {
		return protocol.Response{}, ErrClosed
	}
	if err := protocol.WriteRequest(c.w, req); err != nil {
		return protocol.Response{}, err
	}
	if err := c.w.Flush(); err != nil {
		return protocol.Response{}, err
	}
	return protocol.ReadResponse(c.r)
}

// Set stores key=value.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.SetRequest(key, value))
	if err != nil {
		return err
	}
	if resp.Kind == protocol.RespErr {
		return &ErrServer{Message: resp.Err}
	}
	return nil
}

// Get returns the value for key. A server-side miss comes back as the
// legacy "Key not found" string value rather than ok=false — that quirk is
// preserved end-to-end (spec §9) rather than papered over here, so callers
// see exactly what the wire protocol says.
func (c *Client) Get(key string) (string, error) {
	resp, err := c.roundTrip(protocol.GetRequest(key))
	if err != nil {
		return "", err
	}
	if resp.Kind == protocol.RespErr {
		return "", &ErrServer{Message: resp.Err}
	}
	if !resp.HasValue {
		return "", nil
	}
	return resp.Value, nil
}

// Remove deletes key. It returns *ErrServer{"Key not found"} if key was
// absent.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.RemoveRequest(key))
	if err != nil {
		return err
	}
	if resp.Kind == protocol.RespErr {
		return &ErrServer{Message: resp.Err}
	}
	return nil
}
