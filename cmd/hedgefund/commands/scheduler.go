package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect or trigger maintenance jobs",
	Long: `The API server schedules these jobs itself; this command lists them
or runs one immediately.

Registered jobs:
- run_retention: hourly, deletes finished runs older than RUN_RETENTION

Example:
  go run ./cmd/hedgefund scheduler list
  go run ./cmd/hedgefund scheduler run run_retention`,
}

var (
	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func listJobs(cmd *cobra.Command, args []string) error {
	s, err := newServices(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	sched, err := s.newScheduler()
	if err != nil {
		return err
	}

	fmt.Println("📋 Registered Jobs:")
	PrintNumberedList(sched.GetAllJobs())
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	s, err := newServices(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	sched, err := s.newScheduler()
	if err != nil {
		return err
	}

	jobName := args[0]
	start := time.Now()
	PrintJobHeader(JobMetadata{
		JobType:   "Scheduled Job",
		Tag:       jobName,
		Timestamp: start.Format(time.RFC3339),
	})

	result, err := sched.RunJob(jobName)
	if err != nil {
		return err
	}
	if !result.Success {
		PrintError(result.Error)
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintJobCompletion(jobName, result.Duration.Seconds())
	return nil
}
