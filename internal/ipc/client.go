package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start asks the daemon to resume lane processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop asks the daemon to stop lane processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Enqueue queues a task of a registered kind.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	return call[EnqueueResponse](c, "Enqueue", req)
}

// List returns tasks matching req.
func (c *Client) List(req ListRequest) (*ListResponse, error) {
	return call[ListResponse](c, "List", req)
}

// Describe returns details for a single task.
func (c *Client) Describe(id int64) (*DescribeResponse, error) {
	return call[DescribeResponse](c, "Describe", DescribeRequest{ID: id})
}

// Delete removes tasks, aborting those that are running.
func (c *Client) Delete(ids []int64) (*DeleteResponse, error) {
	return call[DeleteResponse](c, "Delete", DeleteRequest{IDs: ids})
}

// Retry requeues failed tasks.
func (c *Client) Retry(ids []int64) (*RetryResponse, error) {
	return call[RetryResponse](c, "Retry", RetryRequest{IDs: ids})
}

// Events lists events, optionally for one task.
func (c *Client) Events(taskID *int64) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", EventsRequest{TaskID: taskID})
}

// DeleteEvent removes one event.
func (c *Client) DeleteEvent(id int64) (*DeleteEventResponse, error) {
	return call[DeleteEventResponse](c, "DeleteEvent", DeleteEventRequest{ID: id})
}

// Cleanup runs the retention passes.
func (c *Client) Cleanup() (*CleanupResponse, error) {
	return call[CleanupResponse](c, "Cleanup", CleanupRequest{})
}

// Active reports whether category has unfinished tasks.
func (c *Client) Active(category int64) (*ActiveResponse, error) {
	return call[ActiveResponse](c, "Active", ActiveRequest{Category: category})
}

// QueueHealth returns queue counts.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	return call[QueueHealthResponse](c, "QueueHealth", QueueHealthRequest{})
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}
