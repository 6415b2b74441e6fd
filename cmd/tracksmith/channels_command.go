package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List configured channel profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			ids, err := catalog.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channel profiles found.")
				return nil
			}

			titler := cases.Title(language.English)
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				profile, err := catalog.Load(id)
				if err != nil {
					rows = append(rows, []string{id, "-", "-", "-", fmt.Sprintf("invalid: %v", err)})
					continue
				}
				mode := "instrumental"
				if profile.PromptConstraints.DefaultVocals && !profile.PromptConstraints.DefaultInstrumental {
					mode = "vocals"
				}
				rows = append(rows, []string{
					id,
					profile.Name,
					fmt.Sprintf("%d min / %d tracks", profile.DurationRules.TargetMinutes, profile.DurationRules.TrackCount),
					titler.String(mode),
					profile.UploadDefaults.Privacy,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Id", "Name", "Target", "Mode", "Privacy"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	return cmd
}
