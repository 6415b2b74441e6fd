package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, ids)
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				p, err := store.Load(id)
				if err != nil {
					rows = append(rows, []string{id, "-", "-", "unreadable", "-"})
					continue
				}
				state := string(p.Status.CurrentStep)
				if p.Status.LastError != nil {
					state = fmt.Sprintf("%s (failed: %s)", state, p.Status.LastError.Kind)
				}
				rows = append(rows, []string{
					id,
					p.Theme,
					orDash(p.ChannelID),
					state,
					fmt.Sprintf("%d/%d", len(p.OKTracks()), p.TrackCount),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Project", "Theme", "Channel", "State", "Tracks"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit project ids as JSON")
	return cmd
}
