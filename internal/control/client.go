package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is a one-shot control channel client used by sessentryctl.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon's control channel at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send submits a command and waits for its reply. A non-empty Error in the
// response is returned as a Go error.
func (c *Client) Send(command, sender string) (string, error) {
	req := Request{
		ID:      uuid.NewString(),
		Command: command,
		Sender:  sender,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	frame, err := EncodeFrame(OpRequest, payload)
	if err != nil {
		return "", err
	}

	c.conn.SetDeadline(time.Now().Add(requestTimeout))
	if _, err := c.conn.Write(frame); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}

	opcode, body, err := DecodeFrame(c.conn)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if opcode != OpResponse {
		return "", fmt.Errorf("unexpected response opcode %d", opcode)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if resp.ID != req.ID {
		return "", fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	return resp.Reply, nil
}
