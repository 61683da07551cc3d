// Command batchrunnerctl is the CLI front-end for a running batchrunnerd,
// the same role the teacher's cmd/client plays for its job server.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

var certsDir string
var addr string

func getClientConn() *grpc.ClientConn {
	creds, err := createCredentials(certsDir)
	if err != nil {
		log.Fatalf("failed to set up certificates: %v", err)
	}

	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		log.Fatalf("grpc dial error: %v", err)
	}
	return conn
}

func createCredentials(certsDir string) (credentials.TransportCredentials, error) {
	certificate, err := tls.LoadX509KeyPair(
		filepath.Join(certsDir, "client.crt"),
		filepath.Join(certsDir, "client.key"),
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
		Certificates: []tls.Certificate{certificate},
		RootCAs:      ca,
	}
	return credentials.NewTLS(tlsConfig), nil
}

func main() {
	cobra.EnableCommandSorting = false
	cmd := &cobra.Command{
		Use:   "batchrunnerctl",
		Short: "Control a batchrunnerd queue",
	}
	cmd.PersistentFlags().StringVar(&certsDir, "certs", "", "Path to the certs directory containing ca.crt, client.crt and client.key")
	cmd.PersistentFlags().StringVarP(&addr, "addr", "a", "localhost:9000", "Daemon address")
	_ = cmd.MarkPersistentFlagRequired("certs")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(addFolderCmd())
	cmd.AddCommand(addJobCmd())
	cmd.AddCommand(removeFolderCmd())
	cmd.AddCommand(reorderFoldersCmd())
	cmd.AddCommand(reorderJobsCmd())
	cmd.AddCommand(cancelCmd())
	cmd.AddCommand(restartCmd())
	cmd.AddCommand(startQueueCmd())
	cmd.AddCommand(pauseQueueCmd())
	cmd.AddCommand(observeCmd())
	cmd.AddCommand(logsCmd())

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
