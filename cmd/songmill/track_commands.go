package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var stageArgs []string
			if stage := strings.TrimSpace(stageFilter); stage != "" {
				stageArgs = append(stageArgs, stage)
			}
			tracks, err := store.ListTracks(cmd.Context(), stageArgs...)
			if err != nil {
				return err
			}

			headers := []string{"ID", "ARTIST", "TITLE", "STAGE", "ISWC", "DURATION"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
			rows := make([][]string, 0, len(tracks))
			for _, track := range tracks {
				rows = append(rows, []string{
					strconv.FormatInt(track.ID, 10),
					track.Artist,
					track.Title,
					track.Stage,
					track.ISWC,
					formatDuration(track.DurationSeconds),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Only show tracks at this stage")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <track-id>",
		Short: "Show a track's tasks and clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q", args[0])
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			track, err := store.GetTrack(cmd.Context(), trackID)
			if err != nil {
				return err
			}
			if track == nil {
				return fmt.Errorf("track %d not found", trackID)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s - %s (stage %s)\n", track.Artist, track.Title, track.Stage)
			if track.ISWC != "" {
				fmt.Fprintf(out, "iswc: %s\n", track.ISWC)
			}
			if track.ErrorMessage != "" {
				fmt.Fprintf(out, "error: %s\n", track.ErrorMessage)
			}

			tasks, err := store.TasksForTrack(cmd.Context(), trackID)
			if err != nil {
				return err
			}
			taskRows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				taskRows = append(taskRows, []string{
					string(task.Type),
					string(task.Status),
					strconv.Itoa(task.RetryCount),
					task.ErrorClass,
					task.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TASK", "STATUS", "RETRIES", "CLASS", "ERROR"},
				taskRows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))

			clips, err := store.Clips(cmd.Context(), trackID)
			if err != nil {
				return err
			}
			if len(clips) > 0 {
				clipRows := make([][]string, 0, len(clips))
				for _, clip := range clips {
					clipRows = append(clipRows, []string{
						clip.Name,
						formatDuration(clip.StartSeconds),
						formatDuration(clip.EndSeconds),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"CLIP", "START", "END"},
					clipRows,
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
			}
			return nil
		},
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	whole := int(seconds)
	return fmt.Sprintf("%d:%05.2f", whole/60, seconds-float64(whole/60*60))
}
