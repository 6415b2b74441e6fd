package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tracksmith/internal/notifications"
	"tracksmith/internal/pipeline"
	"tracksmith/internal/project"
	"tracksmith/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueAddCommand(ctx))
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueRunCommand(ctx))
	cmd.AddCommand(newQueueWatchCommand(ctx))
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		channelID     string
		terminalStep  string
		trackCount    int
		targetMinutes int
		maxAttempts   int
		count         int
	)

	cmd := &cobra.Command{
		Use:   "add <theme>",
		Short: "Enqueue a pipeline run for a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			if count < 1 {
				count = 1
			}
			for i := 0; i < count; i++ {
				theme := args[0]
				if count > 1 {
					theme = fmt.Sprintf("%s #%d", theme, i+1)
				}
				item, err := store.Enqueue(queue.Item{
					Theme:            theme,
					ChannelID:        channelID,
					TerminalStep:     terminalStep,
					TrackCount:       trackCount,
					TargetMinutes:    targetMinutes,
					MaxTrackAttempts: maxAttempts,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s: %s\n", item.ID, item.Theme)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Channel profile id")
	cmd.Flags().StringVar(&terminalStep, "to", "", "Stop after this step instead of running to upload")
	cmd.Flags().IntVar(&trackCount, "tracks", 0, "Number of tracks to generate")
	cmd.Flags().IntVar(&targetMinutes, "minutes", 0, "Target video length in minutes")
	cmd.Flags().IntVar(&maxAttempts, "max-track-attempts", 0, "Per-track attempt cap override")
	cmd.Flags().IntVar(&count, "count", 1, "Enqueue this many numbered copies of the theme")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show queue contents by lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			counts, err := store.Counts()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending %d, in progress %d, done %d, failed %d\n\n",
				counts[queue.StatePending], counts[queue.StateInProgress],
				counts[queue.StateDone], counts[queue.StateFailed])

			var rows [][]string
			for _, state := range []string{queue.StatePending, queue.StateInProgress, queue.StateFailed} {
				items, err := store.List(state)
				if err != nil {
					return err
				}
				for _, item := range items {
					detail := orDash(item.Error)
					rows = append(rows, []string{
						state,
						item.Theme,
						orDash(item.ChannelID),
						item.EnqueuedAt.Local().Format("2006-01-02 15:04"),
						detail,
					})
				}
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending or failed.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"State", "Theme", "Channel", "Enqueued", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	return cmd
}

func newQueueRunCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain pending queue items through the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, store, notify, err := ctx.queueRunner()
			if err != nil {
				return err
			}
			counts, err := store.Counts()
			if err != nil {
				return err
			}
			if counts[queue.StatePending] == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}
			_ = notify.NotifyQueueStarted(cmd.Context(), counts[queue.StatePending])

			started := time.Now()
			summary, err := runner.Drain(cmd.Context(), limit)
			if err != nil {
				return err
			}
			_ = notify.NotifyQueueCompleted(cmd.Context(), summary.Processed, summary.Failed, time.Since(started))

			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many items (0 = all)")
	return cmd
}

func newQueueWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Continuously drain the queue as new items arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, _, err := ctx.queueRunner()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Watching queue; Ctrl-C to stop.")
			err = runner.Watch(cmd.Context(), 0)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func printSummary(cmd *cobra.Command, summary queue.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d processed, %d succeeded, %d failed\n",
		summary.RunID, summary.Processed, summary.Succeeded, summary.Failed)
	for kind, n := range summary.ErrorsByKind {
		fmt.Fprintf(out, "  %s: %d\n", kind, n)
	}
	for _, item := range summary.Items {
		if item.Error == "" {
			fmt.Fprintf(out, "  ok   %-30s -> %s\n", item.Theme, item.ProjectID)
		} else {
			fmt.Fprintf(out, "  fail %-30s %s\n", item.Theme, item.Error)
		}
	}
}

// queueStore builds the queue store from config.
func (c *commandContext) queueStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.NewStore(cfg.Paths.QueueDir), nil
}

// queueRunner wires the queue to the pipeline: each claimed item creates a
// project and runs it to the item's terminal step.
func (c *commandContext) queueRunner() (*queue.Runner, *queue.Store, notifications.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := c.queueStore()
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := c.catalog()
	if err != nil {
		return nil, nil, nil, err
	}
	projects := project.NewStore(cfg.Paths.ProjectsDir)
	controller, _ := pipeline.Build(cfg, projects, logger)
	notify := notifications.NewService(cfg)

	exec := func(ctx context.Context, item queue.Item) (string, error) {
		var p *project.Project
		var err error
		if item.ProjectID != "" {
			// Re-enqueued item: resume the project it already created.
			p, err = projects.Load(item.ProjectID)
			if err != nil {
				return "", err
			}
		} else {
			p, err = pipeline.CreateProject(projects, catalog, cfg, pipeline.ProjectParams{
				Theme:            item.Theme,
				ChannelID:        item.ChannelID,
				Intent:           item.Intent,
				TrackCount:       item.TrackCount,
				TargetMinutes:    item.TargetMinutes,
				MaxTrackAttempts: item.MaxTrackAttempts,
			})
			if err != nil {
				return "", err
			}
			_ = notify.NotifyProjectCreated(ctx, p.Theme, p.ChannelID)
		}

		terminal, _ := project.ParseStep(item.TerminalStep)
		if err := controller.RunTo(ctx, p, terminal); err != nil {
			_ = notify.NotifyError(ctx, err, "queue item "+item.ID)
			return p.ID, err
		}
		if p.Uploaded() {
			_ = notify.NotifyUploadCompleted(ctx, p.YouTube.Title, p.YouTube.VideoID)
		}
		return p.ID, nil
	}

	return queue.NewRunner(store, exec, logger), store, notify, nil
}
