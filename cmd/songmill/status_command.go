package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songmill/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-stage task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"TASK", "PENDING", "PROCESSING", "COMPLETED", "FAILED"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}
			statuses := []queue.Status{queue.StatusPending, queue.StatusProcessing, queue.StatusCompleted, queue.StatusFailed}

			taskTypes := queue.AllTaskTypes()
			rows := make([][]string, 0, len(taskTypes))
			for _, taskType := range taskTypes {
				counts := stats[taskType]
				row := []string{string(taskType)}
				for _, status := range statuses {
					row = append(row, strconv.Itoa(counts[status]))
				}
				rows = append(rows, row)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}
