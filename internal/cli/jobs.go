package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kriya-app/kriya-cli/internal/domain"
	"github.com/kriya-app/kriya-cli/internal/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(
		newJobsListCmd(),
		newJobsGetCmd(),
		newJobsCreateCmd(),
		newJobsUpdateCmd(),
		newJobsDeleteCmd(),
		newJobsToggleCmd(),
		newJobsRunCmd(),
		newJobsTestCallbackCmd(),
	)
	return cmd
}

// withJobsClient handles the shared setup: config, session guard, and a jobs
// client riding the gateway's cookie jar.
func withJobsClient(ctx context.Context, fn func(context.Context, *jobs.Client) error) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	store, err := e.openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := requireSession(ctx, store); err != nil {
		return err
	}

	gw, err := e.newGateway()
	if err != nil {
		return err
	}
	return fn(ctx, jobs.New(gw.BaseURL(), gw.HTTPClient()))
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				list, err := c.List(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Println("No jobs yet. Create one with `kriya jobs create`.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCRON\tACTIVE\tMETHOD\tCALLBACK")
				for _, j := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
						j.ID, j.Name, j.CronExpression, j.IsActive, j.Method, j.CallbackURL)
				}
				return w.Flush()
			})
		},
	}
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				j, err := c.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printJob(j)
				return nil
			})
		},
	}
}

func saveFlags(cmd *cobra.Command, req *jobs.SaveRequest) {
	cmd.Flags().StringVar(&req.Name, "name", "", "job name")
	cmd.Flags().StringVar(&req.Description, "description", "", "what the job does")
	cmd.Flags().StringVar(&req.CronExpression, "cron", "", "cron expression")
	cmd.Flags().StringVar(&req.CallbackURL, "url", "", "callback URL to hit on each run")
	cmd.Flags().StringVar(&req.Method, "method", "GET", "HTTP method for the callback")
	cmd.Flags().StringVar(&req.Body, "body", "", "request body (POST callbacks)")
	cmd.Flags().BoolVar(&req.IsActive, "active", true, "whether the schedule is active")
}

func newJobsCreateCmd() *cobra.Command {
	var req jobs.SaveRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				j, err := c.Create(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Created job %s\n", j.ID)
				return nil
			})
		},
	}
	saveFlags(cmd, &req)
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("cron")
	cmd.MarkFlagRequired("url")
	return cmd
}

func newJobsUpdateCmd() *cobra.Command {
	var req jobs.SaveRequest
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a job's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				j, err := c.Update(ctx, args[0], req)
				if err != nil {
					return err
				}
				printJob(j)
				return nil
			})
		},
	}
	saveFlags(cmd, &req)
	return cmd
}

func newJobsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				if err := c.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted job %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Activate or deactivate a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				j, err := c.Toggle(ctx, args[0])
				if err != nil {
					return err
				}
				state := "inactive"
				if j.IsActive {
					state = "active"
				}
				fmt.Printf("Job %s is now %s\n", j.ID, state)
				return nil
			})
		},
		Args: cobra.ExactArgs(1),
	}
}

func newJobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Trigger a manual run outside the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				if err := c.Execute(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Job %s executed\n", args[0])
				return nil
			})
		},
	}
}

func newJobsTestCallbackCmd() *cobra.Command {
	var trial jobs.CallbackTest
	cmd := &cobra.Command{
		Use:   "test-callback",
		Short: "Fire a callback once to verify it before saving a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsClient(cmd.Context(), func(ctx context.Context, c *jobs.Client) error {
				ok, message, err := c.TestCallback(ctx, trial)
				if err != nil {
					return err
				}
				if !ok {
					if message == "" {
						message = "Callback test failed"
					}
					return fmt.Errorf("%s", message)
				}
				fmt.Println("Callback reachable")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trial.CallbackURL, "url", "", "callback URL to try")
	cmd.Flags().StringVar(&trial.Method, "method", "GET", "HTTP method for the trial request")
	cmd.Flags().StringVar(&trial.Body, "body", "", "request body (POST trials)")
	cmd.MarkFlagRequired("url")
	return cmd
}

func printJob(j *domain.Job) {
	fmt.Printf("ID:          %s\n", j.ID)
	fmt.Printf("Name:        %s\n", j.Name)
	if j.Description != "" {
		fmt.Printf("Description: %s\n", j.Description)
	}
	fmt.Printf("Cron:        %s\n", j.CronExpression)
	fmt.Printf("Callback:    %s %s\n", j.Method, j.CallbackURL)
	fmt.Printf("Active:      %t\n", j.IsActive)
	if !j.LastExecuted.IsZero() {
		fmt.Printf("Last run:    %s\n", j.LastExecuted.Format("2006-01-02 15:04:05"))
	}
	if !j.CreatedAt.IsZero() {
		fmt.Printf("Created:     %s\n", j.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
