package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	api "github.com/felixgeelhaar/ragent/interfaces/api"
)

// newQueryCmd creates the query command.
func (a *App) newQueryCmd() *cobra.Command {
	var (
		agentID  string
		planning bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask an agent a question",
		Long: `Answer a question by searching the knowledge base and generating a
response from the passages found. When the evaluate action is registered the
answer is judged and, if it falls short, revised.

With --planning the agent first generates a plan for the question and runs it.

Examples:
  # Ask with a throwaway agent
  ragent query "What are goroutines?"

  # Ask an existing agent through a plan
  ragent query --agent 3f2a... --planning "Compare Go and Rust concurrency"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				id, err := resolveAgent(cmd.Context(), rt, agentID)
				if err != nil {
					return err
				}
				answer, err := bus.Send[application.ProcessAgentQueryResult](cmd.Context(), rt.Commands, application.ProcessAgentQuery{
					AgentID:     id,
					Query:       question,
					UsePlanning: planning,
				})
				if err != nil {
					return err
				}
				return a.render(answer, func(w io.Writer) {
					if answer.Error != "" {
						fmt.Fprintf(w, "Error: %s\n", answer.Error)
					}
					fmt.Fprintf(w, "%s\n", answer.Response)
					if answer.Improved {
						fmt.Fprintf(w, "\n(response revised after evaluation)\n")
					}
					if len(answer.Sources) > 0 {
						fmt.Fprintf(w, "\nSources:\n")
						for i, s := range answer.Sources {
							fmt.Fprintf(w, "  [%d] %s\n", i+1, s)
						}
					}
					if answer.Plan != nil {
						fmt.Fprintf(w, "\nPlan %s:\n", answer.Plan.ID)
						for _, s := range answer.Plan.Steps {
							fmt.Fprintf(w, "  %d. %s (%s) %s\n", s.StepNumber, s.ActionType, s.Status, s.Description)
						}
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Agent ID (a throwaway agent is created when empty)")
	cmd.Flags().BoolVar(&planning, "planning", false, "Answer through a generated plan")

	return cmd
}

// newPlanCmd creates the plan command group.
func (a *App) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate, run and inspect plans",
		Long: `Generate, run and inspect plans.

Plans are persisted, so create and execute only work across invocations with
a durable storage backend.`,
	}
	cmd.AddCommand(
		a.newPlanCreateCmd(),
		a.newPlanExecuteCmd(),
		a.newPlanShowCmd(),
		a.newPlanListCmd(),
	)
	return cmd
}

func (a *App) newPlanCreateCmd() *cobra.Command {
	var (
		constraints []string
		execute     bool
	)

	cmd := &cobra.Command{
		Use:   "create <agent-id> <task>",
		Short: "Generate a plan for a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args[1:], " ")
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				created, err := bus.Send[application.CreatePlanResult](cmd.Context(), rt.Commands, application.CreatePlan{
					AgentID:     args[0],
					Task:        task,
					Constraints: constraints,
				})
				if err != nil {
					return err
				}
				if !execute {
					return a.render(created, func(w io.Writer) {
						fmt.Fprintf(w, "Created plan %s with %d steps\n", created.PlanID, created.StepCount)
					})
				}
				return a.executePlan(cmd, rt, created.AgentID, created.PlanID)
			})
		},
	}

	cmd.Flags().StringArrayVar(&constraints, "constraint", nil, "Constraint on the plan (repeatable)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Run the plan once it is created")

	return cmd
}

func (a *App) newPlanExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <agent-id> <plan-id>",
		Short: "Run a plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				return a.executePlan(cmd, rt, args[0], args[1])
			})
		},
	}
}

func (a *App) executePlan(cmd *cobra.Command, rt *api.Runtime, agentID, planID string) error {
	result, err := bus.Send[application.ExecutePlanResult](cmd.Context(), rt.Commands, application.ExecutePlan{
		AgentID: agentID,
		PlanID:  planID,
	})
	if err != nil {
		return err
	}
	return a.render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Plan %s: %s\n", result.PlanID, result.Status)
		fmt.Fprintf(w, "  Completed steps: %v\n", result.CompletedSteps)
		for _, n := range result.CompletedSteps {
			fmt.Fprintf(w, "  [%d] %s\n", n, formatValue(result.Results[n]))
		}
	})
}

func (a *App) newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				p, err := bus.Ask[*plan.Plan](cmd.Context(), rt.Queries, application.GetPlanByID{PlanID: args[0]})
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("%w: %s", plan.ErrPlanNotFound, args[0])
				}
				return a.render(p, func(w io.Writer) {
					writePlan(w, p)
				})
			})
		},
	}
}

func (a *App) newPlanListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				plans, err := bus.Ask[[]*plan.Plan](cmd.Context(), rt.Queries, application.ListPlansByAgentID{AgentID: args[0]})
				if err != nil {
					return err
				}
				return a.render(plans, func(w io.Writer) {
					if len(plans) == 0 {
						fmt.Fprintln(w, "No plans")
						return
					}
					for _, p := range plans {
						fmt.Fprintf(w, "%s  %-10s %d steps  %s\n", p.ID, p.Status, len(p.Steps), p.Task)
					}
				})
			})
		},
	}
}

func writePlan(w io.Writer, p *plan.Plan) {
	fmt.Fprintf(w, "Plan %s: %s\n", p.ID, p.Status)
	fmt.Fprintf(w, "  Task: %s\n", p.Task)
	for _, c := range p.Constraints {
		fmt.Fprintf(w, "  Constraint: %s\n", c)
	}
	for _, s := range p.Steps {
		deps := ""
		if len(s.Dependencies) > 0 {
			deps = fmt.Sprintf(" after %v", s.Dependencies)
		}
		fmt.Fprintf(w, "  %d. %s (%s)%s %s\n", s.Number, s.ActionType, s.Status, deps, s.Description)
		if s.Error != "" {
			fmt.Fprintf(w, "     error: %s\n", s.Error)
		}
	}
}
