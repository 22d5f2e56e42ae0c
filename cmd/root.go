package cmd

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"hsmimport/config"
)

var (
	cfg *config.Config
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hsmimport <destination_root_dir> <list_file> <batch_size>",
		Short: "Bulk-import archived objects into the live filesystem",
		Long: `hsmimport registers every object named in a list file under a destination
root directory, without transferring content. Imported files inherit the
ownership, permissions and timestamps of the destination root.

The list is processed in batches of <batch_size> entries by a bounded pool of
workers. The list file is deleted only when every entry was imported or found
already imported, so a failed run can simply be repeated with the same list.
Configuration is loaded from .env file or environment variables`,
		Example: `  # Import from a local archive directory
  HSM_ARCHIVE_DIR=/archive hsmimport /mnt/lustre/project restore.list 1000

  # Import from S3 with 16 workers
  HSM_BACKEND=s3 BUCKET_NAME=archive hsmimport --workers 16 /mnt/lustre/project restore.list 500

  # Show how the list would be split without importing anything
  hsmimport --dry-run /mnt/lustre/project restore.list 1000`,
		Args:          checkArgs,
		RunE:          runImport,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Int("workers", 0, "Number of concurrent batch workers (default from HSM_WORKERS)")
	cmd.Flags().Int("max-batches", -1, "Maximum number of batches per run, 0 for no limit (default from HSM_MAX_BATCHES)")
	cmd.Flags().Bool("dry-run", false, "Print the batch plan without importing or removing the list")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose output")
	return cmd
}

// Execute runs the root command and returns an *ExitError for every
// non-zero outcome.
func Execute(ctx context.Context, config *config.Config) error {
	cfg = config
	return rootCmd.ExecuteContext(ctx)
}

func checkArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(3)(cmd, args); err != nil {
		return fail(cmd, int(syscall.ENOEXEC), fmt.Errorf("%w; usage: %s", err, cmd.UseLine()))
	}
	return nil
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

// ExitError carries the process exit status of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
