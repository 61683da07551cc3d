package rpc

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/grpc"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/controlapi"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logsink"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

const serviceName = "batchrunner.Control"

// Server adapts a controlapi.API to the hand-wired grpc.ServiceDesc
// below, playing the role the teacher's runnerServer plays for the job
// library in cmd/server/server.go.
type Server struct {
	api *controlapi.API
}

// NewServer wraps api for RPC exposure.
func NewServer(api *controlapi.API) *Server {
	return &Server{api: api}
}

func (s *Server) addFolder(_ context.Context, req *AddFolderRequest) (*FolderResult, error) {
	folder, ok := s.api.AddFolder(req.Path)
	return &FolderResult{Folder: folder, OK: ok}, nil
}

func (s *Server) addJob(_ context.Context, req *AddJobRequest) (*FolderResult, error) {
	folder, ok := s.api.AddJob(req.Path)
	return &FolderResult{Folder: folder, OK: ok}, nil
}

func (s *Server) removeFolder(_ context.Context, req *RemoveFolderRequest) (*BoolResult, error) {
	return &BoolResult{OK: s.api.RemoveFolder(req.FolderID)}, nil
}

func (s *Server) reorderFolders(_ context.Context, req *ReorderFoldersRequest) (*BoolResult, error) {
	return &BoolResult{OK: s.api.ReorderFolders(req.From, req.To)}, nil
}

func (s *Server) reorderJobs(_ context.Context, req *ReorderJobsRequest) (*BoolResult, error) {
	return &BoolResult{OK: s.api.ReorderJobs(req.FolderID, req.From, req.To)}, nil
}

func (s *Server) cancelJob(_ context.Context, req *JobIDRequest) (*BoolResult, error) {
	return &BoolResult{OK: s.api.CancelJob(req.JobID)}, nil
}

func (s *Server) restartJob(_ context.Context, req *JobIDRequest) (*BoolResult, error) {
	return &BoolResult{OK: s.api.RestartJob(req.JobID)}, nil
}

func (s *Server) startQueue(_ context.Context, _ *Empty) (*Empty, error) {
	s.api.StartQueue()
	return &Empty{}, nil
}

func (s *Server) pauseQueue(_ context.Context, _ *Empty) (*Empty, error) {
	s.api.PauseQueue()
	return &Empty{}, nil
}

func (s *Server) observe(_ context.Context, _ *Empty) (*ObserveResult, error) {
	counts := s.api.Observe()
	return &ObserveResult{
		TotalCores:     counts.TotalCores,
		UsedCores:      counts.UsedCores,
		AvailableCores: counts.AvailableCores,
		Snapshot:       counts.Snapshot,
	}, nil
}

// logsStreamHandler streams a job's log file to the client, mirroring the
// teacher's Output RPC in cmd/server/server.go. A non-following request
// sends the file's current content and closes the stream, the same
// "dump and exit" shape batchrunnerctl logs uses without -f; a following
// request keeps the stream open and tails new output.
func logsStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	s := srv.(*Server)

	var req LogsRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	logPath := findJobLogPath(s.api.Observe().Snapshot, req.JobID)
	if logPath == "" {
		return fmt.Errorf("job %s has no log yet", req.JobID)
	}

	if !req.Follow {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return stream.SendMsg(&LogChunk{Data: data})
	}

	ctx := stream.Context()
	stop := make(chan struct{})
	defer close(stop)

	out, err := logsink.Follow(logPath, stop)
	if err != nil {
		return err
	}

	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&LogChunk{Data: chunk}); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func findJobLogPath(snap *state.Snapshot, jobID string) string {
	if snap == nil {
		return ""
	}
	for _, folder := range snap.Folders {
		for _, job := range folder.Jobs {
			if job.ID == jobID && job.LogPath != nil {
				return *job.LogPath
			}
		}
	}
	return ""
}

// unaryHandler adapts a typed (*Server, context.Context, *Req) -> (*Resp,
// error) method into the grpc.MethodDesc handler shape, the same
// adaptation protoc-gen-go-grpc performs for generated code.
func unaryHandler[Req any, Resp any](
	fn func(*Server, context.Context, *Req) (*Resp, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return fn(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(s, ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// ServiceDesc is the hand-wired equivalent of what protoc-gen-go-grpc
// would emit from a batchrunner.proto file. HandlerType is an empty
// interface so RegisterService's implements-check is satisfied by any
// *Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddFolder", Handler: unaryHandler((*Server).addFolder)},
		{MethodName: "AddJob", Handler: unaryHandler((*Server).addJob)},
		{MethodName: "RemoveFolder", Handler: unaryHandler((*Server).removeFolder)},
		{MethodName: "ReorderFolders", Handler: unaryHandler((*Server).reorderFolders)},
		{MethodName: "ReorderJobs", Handler: unaryHandler((*Server).reorderJobs)},
		{MethodName: "CancelJob", Handler: unaryHandler((*Server).cancelJob)},
		{MethodName: "RestartJob", Handler: unaryHandler((*Server).restartJob)},
		{MethodName: "StartQueue", Handler: unaryHandler((*Server).startQueue)},
		{MethodName: "PauseQueue", Handler: unaryHandler((*Server).pauseQueue)},
		{MethodName: "Observe", Handler: unaryHandler((*Server).observe)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Logs", Handler: logsStreamHandler, ServerStreams: true},
	},
	Metadata: "batchrunner.proto",
}
