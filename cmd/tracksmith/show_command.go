package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tracksmith/internal/project"
	"tracksmith/internal/textutil"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's status, tracks, and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			p, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, p)
			}
			printProject(cmd, p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw project document as JSON")
	return cmd
}

func printProject(cmd *cobra.Command, p *project.Project) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project %s\n", p.ID)
	fmt.Fprintf(out, "  theme:       %s\n", p.Theme)
	if p.ChannelID != "" {
		fmt.Fprintf(out, "  channel:     %s\n", p.ChannelID)
	}
	fmt.Fprintf(out, "  created:     %s\n", p.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "  step:        %s (last successful: %s)\n", p.Status.CurrentStep, orDash(string(p.Status.LastSuccessfulStep)))
	if p.Status.LastError != nil {
		fmt.Fprintf(out, "  last error:  [%s] %s\n", p.Status.LastError.Kind, p.Status.LastError.Message)
	}
	if p.Uploaded() {
		fmt.Fprintf(out, "  video id:    %s (%s)\n", p.YouTube.VideoID, p.YouTube.Privacy)
	}

	if len(p.Tracks) > 0 {
		rows := make([][]string, 0, len(p.Tracks))
		for _, track := range p.Tracks {
			verdict := ""
			if track.QC != nil {
				verdict = "pass"
				if !track.QC.Passed {
					verdict = "fail"
					if len(track.QC.Issues) > 0 {
						verdict = track.QC.Issues[0].Code
					}
				}
			}
			detail := ""
			if track.Error != nil {
				detail = fmt.Sprintf("%s (attempt %d)", textutil.Truncate(track.Error.Message, 48), track.Error.AttemptCount)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", track.TrackIndex),
				orDash(track.Title),
				string(track.Status),
				fmt.Sprintf("%.0fs", track.DurationSeconds),
				verdict,
				detail,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Title", "Status", "Length", "QC", "Detail"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
	}

	if p.Render != nil && p.Render.OutputPath != "" {
		fmt.Fprintf(out, "\n  output:      %s\n", p.Render.OutputPath)
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
