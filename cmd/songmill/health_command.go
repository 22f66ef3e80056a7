package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every handler's external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			rows := [][]string{}
			allReady := true
			for _, check := range manager.Health(cmd.Context()) {
				state := "ready"
				if !check.Ready {
					state = "unavailable"
					allReady = false
				}
				rows = append(rows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"HANDLER", "STATE", "DETAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if !allReady {
				return fmt.Errorf("one or more handlers are unavailable")
			}
			return nil
		},
	}
}
