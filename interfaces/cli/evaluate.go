package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	api "github.com/felixgeelhaar/ragent/interfaces/api"
)

type evaluateOutput struct {
	Evaluation  application.EvaluateResponseResult `json:"evaluation"`
	Improvement *application.ImproveResponseResult `json:"improvement,omitempty"`
}

// newEvaluateCmd creates the evaluate command.
func (a *App) newEvaluateCmd() *cobra.Command {
	var (
		agentID  string
		query    string
		snippets []string
		improve  bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <response>",
		Short: "Score a response against the evaluation criteria",
		Long: `Score a response for relevance, factual accuracy, completeness, logical
coherence and ethical compliance, and persist the evaluation.

With --improve the response is revised when the evaluation says it needs it.

Examples:
  ragent evaluate --query "What is Go?" --context "Go is a language" "Go is a snake"
  ragent evaluate --improve --query "What is Go?" "Go is a language"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRuntime(ctx, func(rt *api.Runtime) error {
				id, err := resolveAgent(ctx, rt, agentID)
				if err != nil {
					return err
				}
				judged, err := bus.Send[application.EvaluateResponseResult](ctx, rt.Commands, application.EvaluateResponse{
					AgentID:  id,
					Query:    query,
					Response: args[0],
					Context:  snippets,
				})
				if err != nil {
					return err
				}

				out := evaluateOutput{Evaluation: judged}
				if improve && judged.NeedsImprovement {
					improved, err := bus.Send[application.ImproveResponseResult](ctx, rt.Commands, application.ImproveResponse{
						AgentID:      id,
						EvaluationID: judged.EvaluationID,
					})
					if err != nil {
						return err
					}
					out.Improvement = &improved
				}

				return a.render(out, func(w io.Writer) {
					fmt.Fprintf(w, "Evaluation %s\n", judged.EvaluationID)
					writeScores(w, judged.CriterionScores, judged.OverallScore)
					fmt.Fprintf(w, "  Needs improvement: %t\n", judged.NeedsImprovement)
					if out.Improvement != nil {
						fmt.Fprintln(w)
						writeImprovement(w, out.Improvement.ImprovementID, out.Improvement.ImprovedResponse, out.Improvement.Suggestions)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Agent ID (a throwaway agent is created when empty)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "The query the response answers")
	cmd.Flags().StringArrayVar(&snippets, "context", nil, "Context passage the response was built from (repeatable)")
	cmd.Flags().BoolVar(&improve, "improve", false, "Revise the response when it needs improvement")

	return cmd
}

// newEvaluationCmd creates the evaluation command group.
func (a *App) newEvaluationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluation",
		Short: "Inspect persisted evaluations",
	}

	show := &cobra.Command{
		Use:   "show <evaluation-id>",
		Short: "Show an evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				e, err := bus.Ask[*evaluation.Evaluation](cmd.Context(), rt.Queries, application.GetEvaluationByID{EvaluationID: args[0]})
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("%w: %s", evaluation.ErrEvaluationNotFound, args[0])
				}
				return a.render(e, func(w io.Writer) {
					fmt.Fprintf(w, "Evaluation %s\n", e.ID)
					fmt.Fprintf(w, "  Agent: %s\n", e.AgentID)
					fmt.Fprintf(w, "  Query: %s\n", e.Query)
					fmt.Fprintf(w, "  Response: %s\n", e.Response)
					writeScores(w, e.Scores, e.OverallScore)
				})
			})
		},
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's evaluations, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				page, err := bus.Ask[application.EvaluationListResult](cmd.Context(), rt.Queries, application.ListEvaluationsByAgentID{
					AgentID: args[0],
					Limit:   limit,
					Offset:  offset,
				})
				if err != nil {
					return err
				}
				return a.render(page, func(w io.Writer) {
					fmt.Fprintf(w, "%d of %d evaluations\n", len(page.Evaluations), page.Total)
					for _, e := range page.Evaluations {
						fmt.Fprintf(w, "%s  %.2f  %s\n", e.ID, e.OverallScore, e.Query)
					}
				})
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", application.DefaultPageSize, "Maximum number of evaluations")
	list.Flags().IntVar(&offset, "offset", 0, "Number of evaluations to skip")

	cmd.AddCommand(show, list)
	return cmd
}

// newImprovementCmd creates the improvement command group.
func (a *App) newImprovementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "improvement",
		Short: "Inspect persisted improvements",
	}

	var byEvaluation bool
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an improvement",
		Long: `Show an improvement by its ID, or with --evaluation the latest improvement
of an evaluation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				var query any = application.GetImprovementByID{ImprovementID: args[0]}
				if byEvaluation {
					query = application.GetImprovementByEvaluationID{EvaluationID: args[0]}
				}
				imp, err := bus.Ask[*evaluation.Improvement](cmd.Context(), rt.Queries, query)
				if err != nil {
					return err
				}
				if imp == nil {
					return fmt.Errorf("%w: %s", evaluation.ErrImprovementNotFound, args[0])
				}
				return a.render(imp, func(w io.Writer) {
					fmt.Fprintf(w, "Original: %s\n", imp.OriginalResponse)
					writeImprovement(w, imp.ID, imp.ImprovedResponse, imp.Suggestions)
				})
			})
		},
	}
	show.Flags().BoolVar(&byEvaluation, "evaluation", false, "Treat the argument as an evaluation ID")

	cmd.AddCommand(show)
	return cmd
}

func writeScores(w io.Writer, scores map[evaluation.Criterion]evaluation.CriterionScore, overall float64) {
	for _, c := range evaluation.Criteria() {
		s, ok := scores[c]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-20s %.2f  %s\n", c, s.Score, s.Reason)
	}
	fmt.Fprintf(w, "  %-20s %.2f\n", "overall", overall)
}

func writeImprovement(w io.Writer, id, improved string, suggestions []evaluation.Suggestion) {
	fmt.Fprintf(w, "Improvement %s\n", id)
	fmt.Fprintf(w, "%s\n", improved)
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\nSuggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(w, "  [%d] %s: %s\n", s.Priority, s.Criterion, s.Suggestion)
		}
	}
}
