package rpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
)

// Client is a thin typed wrapper over a grpc.ClientConn dialed against
// the ServiceDesc in service.go, playing the role the teacher's
// cmd/client package plays for its generated stub.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

func (c *Client) call(ctx context.Context, method string, req, reply interface{}) error {
	return c.cc.Invoke(ctx, fullMethod(method), req, reply)
}

// AddFolder calls the AddFolder RPC.
func (c *Client) AddFolder(ctx context.Context, path string) (*FolderResult, error) {
	reply := &FolderResult{}
	if err := c.call(ctx, "AddFolder", &AddFolderRequest{Path: path}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// AddJob calls the AddJob RPC.
func (c *Client) AddJob(ctx context.Context, path string) (*FolderResult, error) {
	reply := &FolderResult{}
	if err := c.call(ctx, "AddJob", &AddJobRequest{Path: path}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// RemoveFolder calls the RemoveFolder RPC.
func (c *Client) RemoveFolder(ctx context.Context, folderID string) (bool, error) {
	reply := &BoolResult{}
	if err := c.call(ctx, "RemoveFolder", &RemoveFolderRequest{FolderID: folderID}, reply); err != nil {
		return false, err
	}
	return reply.OK, nil
}

// ReorderFolders calls the ReorderFolders RPC.
func (c *Client) ReorderFolders(ctx context.Context, from, to int) (bool, error) {
	reply := &BoolResult{}
	if err := c.call(ctx, "ReorderFolders", &ReorderFoldersRequest{From: from, To: to}, reply); err != nil {
		return false, err
	}
	return reply.OK, nil
}

// ReorderJobs calls the ReorderJobs RPC.
func (c *Client) ReorderJobs(ctx context.Context, folderID string, from, to int) (bool, error) {
	reply := &BoolResult{}
	req := &ReorderJobsRequest{FolderID: folderID, From: from, To: to}
	if err := c.call(ctx, "ReorderJobs", req, reply); err != nil {
		return false, err
	}
	return reply.OK, nil
}

// CancelJob calls the CancelJob RPC.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	reply := &BoolResult{}
	if err := c.call(ctx, "CancelJob", &JobIDRequest{JobID: jobID}, reply); err != nil {
		return false, err
	}
	return reply.OK, nil
}

// RestartJob calls the RestartJob RPC.
func (c *Client) RestartJob(ctx context.Context, jobID string) (bool, error) {
	reply := &BoolResult{}
	if err := c.call(ctx, "RestartJob", &JobIDRequest{JobID: jobID}, reply); err != nil {
		return false, err
	}
	return reply.OK, nil
}

// StartQueue calls the StartQueue RPC.
func (c *Client) StartQueue(ctx context.Context) error {
	return c.call(ctx, "StartQueue", &Empty{}, &Empty{})
}

// PauseQueue calls the PauseQueue RPC.
func (c *Client) PauseQueue(ctx context.Context) error {
	return c.call(ctx, "PauseQueue", &Empty{}, &Empty{})
}

// Observe calls the Observe RPC.
func (c *Client) Observe(ctx context.Context) (*ObserveResult, error) {
	reply := &ObserveResult{}
	if err := c.call(ctx, "Observe", &Empty{}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Logs opens the Logs stream for jobID and returns a channel of raw log
// chunks, closed when the stream ends or ctx is cancelled. With
// follow=false the server sends the log's current content once and
// closes the stream; with follow=true it tails new output until ctx is
// cancelled.
func (c *Client) Logs(ctx context.Context, jobID string, follow bool) (<-chan []byte, error) {
	desc := &grpc.StreamDesc{StreamName: "Logs", ServerStreams: true}
	stream, err := c.cc.NewStream(ctx, desc, fullMethod("Logs"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&LogsRequest{JobID: jobID, Follow: follow}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for {
			chunk := &LogChunk{}
			if err := stream.RecvMsg(chunk); err != nil {
				if err != io.EOF {
					return
				}
				return
			}
			select {
			case out <- chunk.Data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
