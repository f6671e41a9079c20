/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/recovery"
)

var (
	jobsStatus  string
	jobsReapAge time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and recover translation jobs",
	Long:  `List translation jobs, retry failed ones, and reap old failures.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List translation jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := jobstore.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open job database: %w", err)
		}
		defer store.Close()

		jobs, err := store.List(context.Background(), jobstore.Filter{
			Status: internal.Status(jobsStatus),
		})
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}
		return printJobs(jobs)
	},
}

var jobsFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List failed jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := jobstore.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open job database: %w", err)
		}
		defer store.Close()

		rec := recovery.NewManager(store, nil, zap.NewNop())
		jobs, err := rec.ListFailed(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list failed jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}
		return printJobs(jobs)
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Reset a failed job so it can run again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := jobstore.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open job database: %w", err)
		}
		defer store.Close()

		rec := recovery.NewManager(store, nil, zap.NewNop())
		job, err := rec.Retry(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to retry job: %w", err)
		}

		fmt.Printf("Job %s reset to %s.\n", job.ID, job.Status)
		return nil
	},
}

var jobsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete old failed jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := jobstore.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open job database: %w", err)
		}
		defer store.Close()

		rec := recovery.NewManager(store, nil, zap.NewNop())
		n, err := rec.ReapFailed(context.Background(), jobsReapAge)
		if err != nil {
			return fmt.Errorf("failed to reap jobs: %w", err)
		}

		fmt.Printf("Deleted %d failed job(s).\n", n)
		return nil
	},
}

func printJobs(jobs []internal.Job) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tPAIR\tSTATUS\tPROGRESS\tCREATED\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s>%s\t%s\t%.1f%%\t%s\t%s\n",
			j.ID, j.Filename, j.SourceLang, j.TargetLang,
			j.Status, j.Progress,
			j.CreatedAt.Format("2006-01-02 15:04"), truncate(j.ErrorMessage, 40))
	}
	return w.Flush()
}

// truncate shortens s to at most max runes, never splitting a multibyte
// character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (pending|in_progress|completed|error)")
	jobsReapCmd.Flags().DurationVar(&jobsReapAge, "older-than", 7*24*time.Hour, "age threshold for deletion")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsFailedCmd)
	jobsCmd.AddCommand(jobsRetryCmd)
	jobsCmd.AddCommand(jobsReapCmd)
	rootCmd.AddCommand(jobsCmd)
}
