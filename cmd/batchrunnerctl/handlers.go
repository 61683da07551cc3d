package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	ourrpc "github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/rpc"
)

func addFolderHandler(path *string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		resp, err := client.AddFolder(context.Background(), *path)
		if err != nil {
			log.Fatalf("failed to add folder %s: %v", *path, err)
		}
		printFolderResult(resp)
	}
}

func addJobHandler(path *string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		resp, err := client.AddJob(context.Background(), *path)
		if err != nil {
			log.Fatalf("failed to add job %s: %v", *path, err)
		}
		printFolderResult(resp)
	}
}

func removeFolderHandler(id *string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		ok, err := client.RemoveFolder(context.Background(), *id)
		if err != nil {
			log.Fatalf("failed to remove folder %s: %v", *id, err)
		}
		fmt.Println(ok)
	}
}

func reorderFoldersHandler(from, to *int) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		ok, err := client.ReorderFolders(context.Background(), *from, *to)
		if err != nil {
			log.Fatalf("failed to reorder folders: %v", err)
		}
		fmt.Println(ok)
	}
}

func reorderJobsHandler(folderID *string, from, to *int) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		ok, err := client.ReorderJobs(context.Background(), *folderID, *from, *to)
		if err != nil {
			log.Fatalf("failed to reorder jobs: %v", err)
		}
		fmt.Println(ok)
	}
}

func cancelHandler(id *string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		ok, err := client.CancelJob(context.Background(), *id)
		if err != nil {
			log.Fatalf("failed to cancel job %s: %v", *id, err)
		}
		fmt.Println(ok)
	}
}

func restartHandler(id *string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		ok, err := client.RestartJob(context.Background(), *id)
		if err != nil {
			log.Fatalf("failed to restart job %s: %v", *id, err)
		}
		fmt.Println(ok)
	}
}

func startQueueHandler() func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		if err := client.StartQueue(context.Background()); err != nil {
			log.Fatalf("failed to start queue: %v", err)
		}
	}
}

func pauseQueueHandler() func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		if err := client.PauseQueue(context.Background()); err != nil {
			log.Fatalf("failed to pause queue: %v", err)
		}
	}
}

func observeHandler() func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		resp, err := client.Observe(context.Background())
		if err != nil {
			log.Fatalf("failed to observe: %v", err)
		}
		fmt.Printf("cores: %d/%d used (%d available)\n", resp.UsedCores, resp.TotalCores, resp.AvailableCores)
		data, _ := json.MarshalIndent(resp.Snapshot, "", "  ")
		fmt.Println(string(data))
	}
}

func logsHandler(id *string, follow *bool) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		conn := getClientConn()
		defer conn.Close()

		client := ourrpc.NewClient(conn)
		chunks, err := client.Logs(context.Background(), *id, *follow)
		if err != nil {
			log.Fatalf("failed to fetch logs for job %s: %v", *id, err)
		}
		for chunk := range chunks {
			fmt.Print(string(chunk))
		}
	}
}

func printFolderResult(resp *ourrpc.FolderResult) {
	if !resp.OK || resp.Folder == nil {
		fmt.Println(false)
		return
	}
	fmt.Println(resp.Folder.ID)
}
