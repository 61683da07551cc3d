// Command batchrunnerd is the daemon process: it owns the scheduler, the
// state file, and optionally a grpc+mTLS Control API listener, the same
// division of labor as the teacher's cmd/server binary draws around its
// job library.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/config"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/controlapi"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/coreprobe"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/rpc"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/scheduler"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

func createCredentials(certsDir string) (credentials.TransportCredentials, error) {
	certificate, err := tls.LoadX509KeyPair(
		filepath.Join(certsDir, "server.crt"),
		filepath.Join(certsDir, "server.key"),
	)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(certsDir, "ca.crt"))
	if err != nil {
		return nil, err
	}

	ca := x509.NewCertPool()
	if !ca.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequireAndVerifyClientCert,
		Certificates: []tls.Certificate{certificate},
		ClientCAs:    ca,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}
	return credentials.NewTLS(tlsConfig), nil
}

func main() {
	cfgPath := "batchrunner.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", cfgPath, err)
	}
	logging.Debug = cfg.Debug

	st := state.NewStore(cfg.StatePath)
	sched := scheduler.New(coreprobe.TotalCores(), st, cfg.LogRoot)
	sched.LoadFromStore()
	sched.ApplyDefaults(cfg.AutoRetryFailedJobs, cfg.ShowConsoleWindow)
	sched.StartQueue()
	api := controlapi.New(sched)

	if cfg.ListenAddr == "" {
		logging.Debugf("batchrunnerd: no listen_addr configured, running headless")
		select {}
	}

	if cfg.CertsDir == "" {
		log.Fatalf("listen_addr set but certs_dir is empty")
	}
	creds, err := createCredentials(cfg.CertsDir)
	if err != nil {
		log.Fatalf("failed to set up certificates: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.ListenAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.Creds(creds))
	grpcServer.RegisterService(&rpc.ServiceDesc, rpc.NewServer(api))

	log.Printf("batchrunnerd: listening on %s (%d cores)", cfg.ListenAddr, coreprobe.TotalCores())
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
