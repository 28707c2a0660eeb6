package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	lifecyclex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/lifecycle"
	llmx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/llm"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func synthesizeCmd() *cobra.Command {
	var foundationPath, outPath string
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Run the synthesis graph for a foundation file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			foundation, err := readFoundation(foundationPath)
			if err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ledger := llmx.NewInferenceLedger()
			orch, err := a.orchestrator(ctx, ledger)
			if err != nil {
				return err
			}
			st, err := orch.Synthesize(ctx, foundation)
			if err != nil {
				return err
			}

			if outPath != "" {
				raw, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, raw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
			}
			if jsonOutput {
				return printJSON(st)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Step", "Outcome", "Attempts", "Duration"})
			for _, s := range st.Steps {
				tw.AppendRow(table.Row{s.Node, s.Outcome, s.Attempts, s.Duration})
			}
			tw.AppendFooter(table.Row{"run " + st.RunID, "", "", fmt.Sprintf("cost %.3f", ledger.TotalCost())})
			tw.Render()

			for _, e := range st.Errors {
				fmt.Printf("! %s (%s): %s\n", e.Node, e.Kind, e.Message)
			}
			if st.Campaign != nil {
				fmt.Printf("campaign %s %q with %d moves\n", st.Campaign.ID, st.Campaign.Name, len(st.Moves))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&foundationPath, "foundation", "f", "", "foundation data file (.json, .yaml, .yml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the full synthesis state as JSON")
	_ = cmd.MarkFlagRequired("foundation")
	return cmd
}

func readFoundation(path string) (statex.FoundationData, error) {
	var f statex.FoundationData
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &f)
	default:
		err = json.Unmarshal(raw, &f)
	}
	if err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// withManager builds the lifecycle manager for one command and closes adapters afterwards.
func withManager(ctx context.Context, fn func(*lifecyclex.Manager) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	m, err := a.lifecycle()
	if err != nil {
		return err
	}
	return fn(m)
}

func campaignCmd() *cobra.Command {
	c := &cobra.Command{Use: "campaign", Short: "Manage campaigns"}

	transition := &cobra.Command{
		Use:   "transition <campaign-id> <status>",
		Short: "Move a campaign to planned, active, paused, wrapup or archived",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				updated, err := m.TransitionCampaign(cmd.Context(), args[0], statex.CampaignStatus(args[1]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(updated)
				}
				fmt.Printf("campaign %s is %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}

	progress := &cobra.Command{
		Use:   "progress <campaign-id>",
		Short: "Show campaign progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				p, err := m.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(p)
				}
				current := "-"
				if p.CurrentMove != nil {
					current = p.CurrentMove.Name
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Status", "Moves", "Progress", "Week", "Current move"})
				tw.AppendRow(table.Row{
					p.Status,
					fmt.Sprintf("%d/%d", p.CompletedMoves, p.TotalMoves),
					fmt.Sprintf("%.0f%%", p.Ratio*100),
					fmt.Sprintf("%d/%d", p.WeekNumber, p.TotalWeeks),
					current,
				})
				tw.Render()
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign and its moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				if err := m.DeleteCampaign(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("campaign %s deleted\n", args[0])
				return nil
			})
		},
	}

	c.AddCommand(transition, progress, del)
	return c
}

func moveCmd() *cobra.Command {
	c := &cobra.Command{Use: "move", Short: "Manage campaign moves"}

	printMove := func(mv statex.Move) error {
		if jsonOutput {
			return printJSON(mv)
		}
		fmt.Printf("move %s (%s) is %s\n", mv.ID, mv.Name, mv.Status)
		return nil
	}

	queue := &cobra.Command{
		Use:   "queue <campaign-id> <move-id>",
		Short: "Queue a drafted move",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				mv, err := m.QueueMove(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printMove(mv)
			})
		},
	}

	var completePrevious bool
	activate := &cobra.Command{
		Use:   "activate <campaign-id> <move-id>",
		Short: "Activate a queued move",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				mv, err := m.ActivateMove(cmd.Context(), args[0], args[1], lifecyclex.ActivateOptions{CompletePrevious: completePrevious})
				if err != nil {
					return err
				}
				return printMove(mv)
			})
		},
	}
	activate.Flags().BoolVar(&completePrevious, "complete-previous", false, "complete the currently active move first")

	complete := &cobra.Command{
		Use:   "complete <campaign-id> <move-id>",
		Short: "Complete the active move",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				mv, err := m.CompleteMove(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printMove(mv)
			})
		},
	}

	check := &cobra.Command{
		Use:   "check <campaign-id> <move-id> <item-index>",
		Short: "Toggle a checklist item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("item index: %w", err)
			}
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				mv, err := m.ToggleChecklistItem(cmd.Context(), args[0], args[1], index)
				if err != nil {
					return err
				}
				return printMove(mv)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <campaign-id> <move-id>",
		Short: "Remove a move from a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				if err := m.RemoveMove(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("move %s removed\n", args[1])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <campaign-id>",
		Short: "List a campaign's moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecyclex.Manager) error {
				moves, err := m.Moves(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(moves)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "ID", "Name", "Channel", "Days", "Status", "Checklist"})
				for _, mv := range moves {
					done := 0
					for _, item := range mv.Checklist {
						if item.Completed {
							done++
						}
					}
					tw.AppendRow(table.Row{mv.Position, mv.ID, mv.Name, mv.Channel, mv.DurationDays, mv.Status, fmt.Sprintf("%d/%d", done, len(mv.Checklist))})
				}
				tw.Render()
				return nil
			})
		},
	}

	c.AddCommand(queue, activate, complete, check, remove, list)
	return c
}
