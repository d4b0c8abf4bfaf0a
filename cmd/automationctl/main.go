package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/bootstrap"
	"clinic_automation/platform/config"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "automationctl",
		Short:         "Inspect and run clinic automations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the automation catalog with the next scheduled run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			registry, err := bootstrap.Registry(cfg)
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), registry.List(), time.Now().In(cfg.GetAutomationLocation()))
		},
	}
}

func runCmd() *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run a job now, for one tenant or every tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenantFlag(tenant)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Env)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			var out any
			if tenantID != nil {
				out, err = rt.Engine.RunTenant(ctx, args[0], tenantID)
			} else {
				out, err = rt.Engine.RunJob(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant (organization) id; omit to fan out")
	return cmd
}

func parseTenantFlag(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("--tenant: %w", err)
	}
	return &id, nil
}

func printCatalog(w io.Writer, descs []automation.JobDescriptor, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCHEDULE\tCATEGORY\tPRIORITY\tENABLED\tNEXT RUN")
	for _, d := range descs {
		next := "-"
		if d.Enabled {
			if t, err := automation.NextRun(d, now); err == nil {
				next = t.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", d.ID, d.Schedule, d.Category, d.Priority, d.Enabled, next)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
