package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rbt/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [jobs...]",
		Short: "Build the named jobs, or the default job",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			rootDir, _ := cmd.Flags().GetString("root-dir")
			workers, _ := cmd.Flags().GetInt("worker-threads")
			keepGoing, _ := cmd.Flags().GetBool("keep-going")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			onCancel, _ := cmd.Flags().GetString("on-cancel")
			printPaths, _ := cmd.Flags().GetBool("print-root-output-paths")
			summary, _ := cmd.Flags().GetString("summary")
			progressLog, _ := cmd.Flags().GetString("progress-log")

			return c.app.Run(cmd.Context(), args, app.RunOptions{
				File:                 file,
				RootDir:              rootDir,
				WorkerThreads:        workers,
				KeepGoing:            keepGoing,
				NoCache:              noCache,
				OnCancel:             onCancel,
				PrintRootOutputPaths: printPaths,
				SummaryPath:          summary,
				ProgressLog:          progressLog,
			})
		},
	}
	cmd.Flags().IntP("worker-threads", "j", 0, "Maximum number of concurrently running jobs (default: number of CPUs)")
	cmd.Flags().BoolP("keep-going", "k", false, "Keep running independent jobs after a failure")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass cache lookups and force execution")
	cmd.Flags().String("on-cancel", "", "What to do with running jobs on interrupt: kill or finish")
	cmd.Flags().Bool("print-root-output-paths", false, "Print the store path of each requested job")
	cmd.Flags().String("summary", "", "Write the JSON build summary to this path")
	cmd.Flags().String("progress-log", "", "Write the progress stream as JSON lines to this path")
	return cmd
}
