// Package rpc is the optional local remote-control surface described in
// SPEC_FULL.md's DOMAIN STACK section: the Control API (pkg/controlapi)
// exposed over grpc with mTLS, exactly as the teacher's cmd/server does
// for its job library. Because protoc is unavailable in this build
// environment, the wire messages here are plain JSON-tagged structs
// rather than protoc-generated types; see codec.go for how that is
// reconciled with grpc's codec model.
package rpc

import "github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"

// AddFolderRequest is the request for the AddFolder RPC.
type AddFolderRequest struct {
	Path string `json:"path"`
}

// AddJobRequest is the request for the AddJob RPC.
type AddJobRequest struct {
	Path string `json:"path"`
}

// FolderResult is the response for AddFolder and AddJob.
type FolderResult struct {
	Folder *state.Folder `json:"folder,omitempty"`
	OK     bool          `json:"ok"`
}

// RemoveFolderRequest is the request for the RemoveFolder RPC.
type RemoveFolderRequest struct {
	FolderID string `json:"folder_id"`
}

// ReorderFoldersRequest is the request for the ReorderFolders RPC.
type ReorderFoldersRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderJobsRequest is the request for the ReorderJobs RPC.
type ReorderJobsRequest struct {
	FolderID string `json:"folder_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// JobIDRequest is the request for CancelJob and RestartJob.
type JobIDRequest struct {
	JobID string `json:"job_id"`
}

// BoolResult is the response for RPCs that return a single accepted
// flag: RemoveFolder, ReorderFolders, ReorderJobs, CancelJob, RestartJob.
type BoolResult struct {
	OK bool `json:"ok"`
}

// Empty is the request/response for RPCs with no payload: StartQueue and
// PauseQueue.
type Empty struct{}

// ObserveResult is the response for the Observe RPC.
type ObserveResult struct {
	TotalCores     int             `json:"total_cores"`
	UsedCores      int             `json:"used_cores"`
	AvailableCores int             `json:"available_cores"`
	Snapshot       *state.Snapshot `json:"snapshot"`
}

// LogsRequest is the request that opens a Logs stream. When Follow is
// false the server sends the log's current content and closes the
// stream; when true it keeps the stream open and tails new output.
type LogsRequest struct {
	JobID  string `json:"job_id"`
	Follow bool   `json:"follow"`
}

// LogChunk is one message of a Logs stream response.
type LogChunk struct {
	Data []byte `json:"data"`
}
