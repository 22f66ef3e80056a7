package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"songmill/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var typeFlags []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process ready tasks once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskTypes, err := parseTaskTypes(typeFlags)
			if err != nil {
				return err
			}

			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			manager, _, err := ctx.buildManager(store, logger)
			if err != nil {
				return err
			}

			stats, err := manager.Run(cmd.Context(), limit, taskTypes...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"resolved %d, completed %d, failed %d, gate-failed %d, skipped %d\n",
				stats.Resolved, stats.Completed, stats.Failed, stats.GateFailed, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum tasks to process")
	cmd.Flags().StringSliceVar(&typeFlags, "type", nil, "Restrict to task types (repeatable or comma separated)")
	return cmd
}

func parseTaskTypes(values []string) ([]queue.TaskType, error) {
	var taskTypes []queue.TaskType
	for _, value := range values {
		for _, raw := range strings.Split(value, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			taskType, ok := queue.ParseTaskType(raw)
			if !ok {
				return nil, fmt.Errorf("invalid task type %q", raw)
			}
			taskTypes = append(taskTypes, taskType)
		}
	}
	return taskTypes, nil
}
