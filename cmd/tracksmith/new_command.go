package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracksmith/internal/pipeline"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var (
		channelID     string
		intent        string
		trackCount    int
		targetMinutes int
		vocals        bool
	)

	cmd := &cobra.Command{
		Use:   "new <theme>",
		Short: "Create a new project for a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}

			params := pipeline.ProjectParams{
				Theme:         args[0],
				ChannelID:     channelID,
				Intent:        intent,
				TrackCount:    trackCount,
				TargetMinutes: targetMinutes,
			}
			if cmd.Flags().Changed("vocals") {
				params.Vocals = &vocals
			}

			p, err := pipeline.CreateProject(store, catalog, cfg, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", p.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  theme:   %s\n", p.Theme)
			if p.ChannelID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  channel: %s\n", p.ChannelID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  tracks:  %d\n", p.TrackCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  vocals:  %s\n", yesNo(p.Vocals.Enabled))
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Channel profile id to apply defaults from")
	cmd.Flags().StringVar(&intent, "intent", "", "Intent note recorded on the project")
	cmd.Flags().IntVar(&trackCount, "tracks", 0, "Number of tracks to generate (default from channel)")
	cmd.Flags().IntVar(&targetMinutes, "minutes", 0, "Target video length in minutes (default from channel)")
	cmd.Flags().BoolVar(&vocals, "vocals", false, "Generate vocal tracks with lyrics")
	return cmd
}
