package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracksmith/internal/project"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var toStep string
	var fromStep string

	cmd := &cobra.Command{
		Use:   "run <project-id>",
		Short: "Run the pipeline for a project, resuming after the last successful step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, _, store, err := ctx.buildPipeline()
			if err != nil {
				return err
			}
			p, err := store.Load(args[0])
			if err != nil {
				return err
			}

			if fromStep != "" {
				step, ok := project.ParseStep(fromStep)
				if !ok {
					return fmt.Errorf("unknown step %q (valid: %v)", fromStep, project.StepOrder())
				}
				next, more := p.NextStep()
				if !more {
					return fmt.Errorf("project %s is already complete", p.ID)
				}
				if step != next && step != p.Status.CurrentStep {
					return fmt.Errorf("project %s resumes at %s, not %s", p.ID, next, step)
				}
			}

			var terminal project.Step
			if toStep != "" {
				step, ok := project.ParseStep(toStep)
				if !ok {
					return fmt.Errorf("unknown step %q (valid: %v)", toStep, project.StepOrder())
				}
				terminal = step
			}

			if err := controller.RunTo(cmd.Context(), p, terminal); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s: %s (last successful step: %s)\n",
				p.ID, p.Status.CurrentStep, p.Status.LastSuccessfulStep)
			return nil
		},
	}

	cmd.Flags().StringVar(&toStep, "to", "", "Stop after this step instead of running to upload")
	cmd.Flags().StringVar(&fromStep, "from", "", "Refuse to run unless the project resumes at this step")
	return cmd
}

func newRunStepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-step <project-id> <step>",
		Short: "Run a single pipeline step",
		Long: "Run one step of the pipeline. The step must be the next one in order,\n" +
			"or the step that was already in flight when a previous run stopped.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runner, store, err := ctx.buildPipeline()
			if err != nil {
				return err
			}
			p, err := store.Load(args[0])
			if err != nil {
				return err
			}
			step, ok := project.ParseStep(args[1])
			if !ok {
				return fmt.Errorf("unknown step %q (valid: %v)", args[1], project.StepOrder())
			}
			if err := runner.RunStep(cmd.Context(), p, step); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Step %s succeeded for project %s\n", step, p.ID)
			return nil
		},
	}
}
