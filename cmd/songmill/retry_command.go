package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songmill/internal/queue"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <track-id> <task-type>",
		Short: "Reset a failed task so it runs again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q", args[0])
			}
			taskType, ok := queue.ParseTaskType(args[1])
			if !ok {
				return fmt.Errorf("invalid task type %q", args[1])
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			reset, err := store.RetryTask(cmd.Context(), trackID, taskType)
			if err != nil {
				return err
			}
			if !reset {
				return fmt.Errorf("task %s for track %d is not in a failed state", taskType, trackID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s for track %d requeued\n", taskType, trackID)
			return nil
		},
	}
}
