package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	api "github.com/felixgeelhaar/ragent/interfaces/api"
)

// newActionsCmd creates the actions command.
func (a *App) newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the registered actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				infos, err := bus.Ask[[]application.ActionInfo](cmd.Context(), rt.Queries, application.GetAvailableActions{})
				if err != nil {
					return err
				}
				return a.render(infos, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, info := range infos {
						fmt.Fprintf(tw, "%s\t%s\n", info.ActionType, info.Description)
					}
					_ = tw.Flush()
				})
			})
		},
	}
}

// newAgentCmd creates the agent command group.
func (a *App) newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Create, inspect and drive agents",
	}
	cmd.AddCommand(
		a.newAgentCreateCmd(),
		a.newAgentListCmd(),
		a.newAgentShowCmd(),
		a.newAgentDeleteCmd(),
		a.newAgentActionsCmd(),
		a.newAgentExecCmd(),
	)
	return cmd
}

func (a *App) newAgentCreateCmd() *cobra.Command {
	var (
		name           string
		description    string
		conversationID string
		settings       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := make(map[string]any, len(settings))
			for k, v := range settings {
				config[k] = v
			}
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				created, err := bus.Send[application.CreateAgentResult](cmd.Context(), rt.Commands, application.CreateAgent{
					Name:           name,
					Description:    description,
					ConversationID: conversationID,
					Config:         config,
				})
				if err != nil {
					return err
				}
				return a.render(created, func(w io.Writer) {
					fmt.Fprintf(w, "Created agent %s\n", created.AgentID)
					fmt.Fprintf(w, "  Name: %s\n", created.Name)
					fmt.Fprintf(w, "  Conversation: %s\n", created.ConversationID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Agent description")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID (generated when empty)")
	cmd.Flags().StringToStringVar(&settings, "set", nil, "Agent configuration (key=value)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func (a *App) newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				views, err := bus.Ask[[]*application.AgentView](cmd.Context(), rt.Queries, application.ListAgents{})
				if err != nil {
					return err
				}
				return a.render(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No agents")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tACTIONS\tUPDATED")
					for _, v := range views {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", v.ID, v.Name, v.ActionCount, v.UpdatedAt.Format("2006-01-02 15:04:05"))
					}
					_ = tw.Flush()
				})
			})
		},
	}
}

func (a *App) newAgentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				view, err := lookupAgent(cmd.Context(), rt, args[0])
				if err != nil {
					return err
				}
				return a.render(view, func(w io.Writer) {
					fmt.Fprintf(w, "Agent %s\n", view.ID)
					fmt.Fprintf(w, "  Name: %s\n", view.Name)
					if view.Description != "" {
						fmt.Fprintf(w, "  Description: %s\n", view.Description)
					}
					fmt.Fprintf(w, "  Conversation: %s\n", view.ConversationID)
					fmt.Fprintf(w, "  Actions: %d\n", view.ActionCount)
					fmt.Fprintf(w, "  Version: %d\n", view.Version)
					if len(view.Memory) > 0 {
						fmt.Fprintf(w, "  Memory:\n")
						for _, k := range sortedKeys(view.Memory) {
							fmt.Fprintf(w, "    %s: %v\n", k, view.Memory[k])
						}
					}
				})
			})
		},
	}
}

func (a *App) newAgentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				deleted, err := bus.Send[application.DeleteAgentResult](cmd.Context(), rt.Commands, application.DeleteAgent{AgentID: args[0]})
				if err != nil {
					return err
				}
				return a.render(deleted, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted agent %s\n", deleted.AgentID)
				})
			})
		},
	}
}

func (a *App) newAgentActionsCmd() *cobra.Command {
	var (
		limit      int
		offset     int
		actionType string
	)

	cmd := &cobra.Command{
		Use:   "actions <agent-id>",
		Short: "Page through an agent's action history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				page, err := bus.Ask[application.AgentActionsResult](cmd.Context(), rt.Queries, application.GetAgentActions{
					AgentID:    args[0],
					Limit:      limit,
					Offset:     offset,
					ActionType: actionType,
				})
				if err != nil {
					return err
				}
				return a.render(page, func(w io.Writer) {
					fmt.Fprintf(w, "%d of %d actions\n", len(page.Actions), page.Total)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, act := range page.Actions {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", act.ID, act.ActionType, act.Status, act.Error)
					}
					_ = tw.Flush()
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultPageSize, "Maximum number of actions")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of actions to skip")
	cmd.Flags().StringVar(&actionType, "type", "", "Only actions of this type")

	return cmd
}

func (a *App) newAgentExecCmd() *cobra.Command {
	var (
		params     map[string]string
		paramsJSON string
	)

	cmd := &cobra.Command{
		Use:   "exec <agent-id> <action-type>",
		Short: "Execute one action for an agent",
		Long: `Execute one registered action for an agent and record it in the
agent's history.

Examples:
  ragent agent exec 3f2a... search --param query="goroutines" --param limit=3
  ragent agent exec 3f2a... generate --params '{"query":"q","context":["a","b"]}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters := make(map[string]any, len(params))
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &parameters); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}
			for k, v := range params {
				parameters[k] = v
			}

			return a.withRuntime(cmd.Context(), func(rt *api.Runtime) error {
				result, err := bus.Send[application.ExecuteAgentActionResult](cmd.Context(), rt.Commands, application.ExecuteAgentAction{
					AgentID:    args[0],
					ActionType: args[1],
					Parameters: parameters,
				})
				if err != nil && result.ActionID == "" {
					return err
				}
				if renderErr := a.render(result, func(w io.Writer) {
					fmt.Fprintf(w, "Action %s (%s): %s\n", result.ActionID, result.ActionType, result.Status)
					if result.Status == agent.ActionCompleted {
						fmt.Fprintf(w, "%s\n", formatValue(result.Result))
					}
				}); renderErr != nil {
					return renderErr
				}
				return err
			})
		},
	}

	cmd.Flags().StringToStringVar(&params, "param", nil, "Action parameter (key=value)")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "Action parameters as a JSON object")

	return cmd
}

// lookupAgent returns the agent view or a not-found error.
func lookupAgent(ctx context.Context, rt *api.Runtime, id string) (*application.AgentView, error) {
	view, err := bus.Ask[*application.AgentView](ctx, rt.Queries, application.GetAgentByID{AgentID: id})
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return view, nil
}
