// Package zmqlink carries learner exchanges over ZeroMQ.  The routing table
// holds a REQ socket connected to the learner, which binds a REP socket;
// ZeroMQ enforces the strict send, receive alternation of the exchange.
package zmqlink

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// Endpoint returns the address of a learner listening on port of the local host
func Endpoint(port int) string {
	return fmt.Sprintf("tcp://localhost:%d", port)
}

// Client is the requesting side of the exchange
type Client struct {
	mu       sync.Mutex
	sock     zmq4.Socket
	endpoint string
	cancel   context.CancelFunc
}

// Dial connects a REQ socket to endpoint
func Dial(endpoint string) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(endpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("zmqlink: dial %s: %w", endpoint, err)
	}
	return &Client{sock: sock, endpoint: endpoint, cancel: cancel}, nil
}

// Exchange sends request and blocks until the reply arrives
func (c *Client) Exchange(request string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sock.Send(zmq4.NewMsgString(request)); err != nil {
		return "", fmt.Errorf("zmqlink: send to %s: %w", c.endpoint, err)
	}
	msg, err := c.sock.Recv()
	if err != nil {
		return "", fmt.Errorf("zmqlink: receive from %s: %w", c.endpoint, err)
	}
	return string(bytes.Join(msg.Frames, nil)), nil
}

// Close closes the socket
func (c *Client) Close() error {
	defer c.cancel()
	return c.sock.Close()
}

// Handler computes the reply to a request
type Handler func(request string) string

// Server is the replying side of the exchange, standing in for the learner
// in tests and in runs without one
type Server struct {
	sock   zmq4.Socket
	cancel context.CancelFunc
}

// Listen binds a REP socket to endpoint
func Listen(endpoint string) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(endpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("zmqlink: listen %s: %w", endpoint, err)
	}
	return &Server{sock: sock, cancel: cancel}, nil
}

// Serve answers requests with handler until the server is closed, and
// returns the error that ended it
func (s *Server) Serve(handler Handler) error {
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			return err
		}
		reply := handler(string(bytes.Join(msg.Frames, nil)))
		if err := s.sock.Send(zmq4.NewMsgString(reply)); err != nil {
			return err
		}
	}
}

// Close stops Serve and closes the socket
func (s *Server) Close() error {
	s.cancel()
	return s.sock.Close()
}
