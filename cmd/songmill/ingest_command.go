package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"songmill/internal/queue"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		title        string
		artist       string
		isrc         string
		sourceURL    string
		duration     float64
		fragmentText string
		fragmentFile string
		fragmentName string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add a track to the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
				return errors.New("--title and --artist are required")
			}
			if strings.TrimSpace(sourceURL) == "" {
				return errors.New("--source is required")
			}

			fragmentJSON, err := buildFragmentJSON(fragmentText, fragmentFile, fragmentName)
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			track, err := store.IngestTrack(cmd.Context(), queue.NewTrack{
				Title:           title,
				Artist:          artist,
				ISRC:            isrc,
				SourceURL:       sourceURL,
				DurationSeconds: duration,
			})
			if err != nil {
				return err
			}
			if fragmentJSON != "" {
				track.FragmentJSON = fragmentJSON
				if err := store.UpdateTrack(cmd.Context(), track); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested track %d: %s - %s\n", track.ID, track.Artist, track.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringVar(&artist, "artist", "", "Track artist")
	cmd.Flags().StringVar(&isrc, "isrc", "", "ISRC recording code")
	cmd.Flags().StringVar(&sourceURL, "source", "", "Source audio URL")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Known duration in seconds (optional)")
	cmd.Flags().StringVar(&fragmentText, "fragment", "", "Fragment transcript to align")
	cmd.Flags().StringVar(&fragmentFile, "fragment-file", "", "File containing the fragment transcript")
	cmd.Flags().StringVar(&fragmentName, "fragment-name", "", "Clip name for the aligned fragment")
	return cmd
}

func buildFragmentJSON(text, file, name string) (string, error) {
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read fragment file: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	payload := map[string]string{"text": text}
	if name = strings.TrimSpace(name); name != "" {
		payload["name"] = name
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
