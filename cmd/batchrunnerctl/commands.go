package main

import (
	"github.com/spf13/cobra"
)

func addFolderCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:     "add-folder --path <dir>",
		Short:   "Enroll a folder of numbered scripts",
		Example: "batchrunnerctl add-folder --path /cases/case01",
		Run:     addFolderHandler(&path),
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Folder path")
	return cmd
}

func addJobCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:     "add-job --path <script>",
		Short:   "Enroll a single script as a synthetic one-job folder",
		Example: "batchrunnerctl add-job --path /cases/case01/3_run.bat",
		Run:     addJobHandler(&path),
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Script path")
	return cmd
}

func removeFolderCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "remove-folder --id <folder_id>",
		Short:   "Cancel running jobs in a folder and delete it",
		Example: "batchrunnerctl remove-folder --id <folder_id>",
		Run:     removeFolderHandler(&id),
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Folder ID")
	return cmd
}

func reorderFoldersCmd() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:     "reorder-folders --from <i> --to <j>",
		Short:   "Move a folder within the top-level sequence",
		Example: "batchrunnerctl reorder-folders --from 2 --to 0",
		Run:     reorderFoldersHandler(&from, &to),
	}
	cmd.Flags().IntVar(&from, "from", 0, "Source index")
	cmd.Flags().IntVar(&to, "to", 0, "Destination index")
	return cmd
}

func reorderJobsCmd() *cobra.Command {
	var folderID string
	var from, to int
	cmd := &cobra.Command{
		Use:     "reorder-jobs --folder <folder_id> --from <i> --to <j>",
		Short:   "Move a job within a folder's job list",
		Example: "batchrunnerctl reorder-jobs --folder <folder_id> --from 1 --to 0",
		Run:     reorderJobsHandler(&folderID, &from, &to),
	}
	cmd.Flags().StringVarP(&folderID, "folder", "f", "", "Folder ID")
	cmd.Flags().IntVar(&from, "from", 0, "Source index")
	cmd.Flags().IntVar(&to, "to", 0, "Destination index")
	return cmd
}

func cancelCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "cancel --id <job_id>",
		Short:   "Cancel a queued or running job",
		Example: "batchrunnerctl cancel --id <job_id>",
		Run:     cancelHandler(&id),
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Job ID")
	return cmd
}

func restartCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "restart --id <job_id>",
		Short:   "Restart a job from scratch",
		Example: "batchrunnerctl restart --id <job_id>",
		Run:     restartHandler(&id),
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Job ID")
	return cmd
}

func startQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-queue",
		Short: "Permit admission passes to run",
		Run:   startQueueHandler(),
	}
}

func pauseQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause-queue",
		Short: "Suppress future admission passes",
		Run:   pauseQueueHandler(),
	}
}

func observeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "observe",
		Short: "Print core usage and the full snapshot",
		Run:   observeHandler(),
	}
}

func logsCmd() *cobra.Command {
	var id string
	var follow bool
	cmd := &cobra.Command{
		Use:     "logs --id <job_id>",
		Short:   "Print a job's log, following it with -f",
		Example: "batchrunnerctl logs --id <job_id> -f",
		Run:     logsHandler(&id, &follow),
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Job ID")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new output")
	return cmd
}
