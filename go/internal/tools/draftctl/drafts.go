package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// draftView is the subset of the draft JSON draftctl prints.
type draftView struct {
	ID           string `json:"id"`
	LeagueID     string `json:"league_id"`
	Status       string `json:"status"`
	CurOverall   int    `json:"cur_overall"`
	OnClockTeam  string `json:"on_clock_team"`
	ClockSeconds int    `json:"clock_seconds"`
}

type pickView struct {
	Overall    int     `json:"overall"`
	Round      int     `json:"round"`
	Team       string  `json:"team"`
	PlayerID   string  `json:"player_id"`
	PlayerName *string `json:"player_name"`
	MadeBy     string  `json:"made_by"`
}

type overviewView struct {
	Draft        draftView  `json:"draft"`
	TotalPicks   int        `json:"total_picks"`
	RemainingSec *int       `json:"remaining_sec"`
	RecentPicks  []pickView `json:"recent_picks"`
	CustomPool   bool       `json:"custom_pool"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDraft(w io.Writer, d draftView) {
	fmt.Fprintf(w, "draft %s [%s] league=%s overall=%d on_clock=%s clock=%ds\n",
		d.ID, d.Status, d.LeagueID, d.CurOverall, orDash(d.OnClockTeam), d.ClockSeconds)
}

func printPick(w io.Writer, p pickView) {
	name := p.PlayerID
	if p.PlayerName != nil && *p.PlayerName != "" {
		name = fmt.Sprintf("%s (%s)", *p.PlayerName, p.PlayerID)
	}
	fmt.Fprintf(w, "#%d round %d: %s took %s [%s]\n", p.Overall, p.Round, p.Team, name, p.MadeBy)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newCreateCmd(opts *globalOpts) *cobra.Command {
	var req struct {
		LeagueID     string   `json:"league_id"`
		Year         int      `json:"year"`
		Rounds       int      `json:"rounds"`
		Teams        []string `json:"teams"`
		ClockSeconds int      `json:"clock_seconds"`
		Snake        bool     `json:"snake"`
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			var d draftView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/drafts", req, &d); err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.LeagueID, "league", "", "league id")
	cmd.Flags().IntVar(&req.Year, "year", 0, "season year")
	cmd.Flags().IntVar(&req.Rounds, "rounds", 15, "number of rounds")
	cmd.Flags().StringSliceVar(&req.Teams, "teams", nil, "teams in first-round order")
	cmd.Flags().IntVar(&req.ClockSeconds, "clock", 90, "seconds per pick")
	cmd.Flags().BoolVar(&req.Snake, "snake", true, "reverse order on even rounds")
	_ = cmd.MarkFlagRequired("league")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("teams")
	return cmd
}

func newStatusCmd(opts *globalOpts) *cobra.Command {
	var (
		league string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status [draft-id]",
		Short: "Show a draft overview",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var endpoint string
			switch {
			case len(args) == 1:
				endpoint = "/drafts/" + args[0]
			case league != "":
				endpoint = "/leagues/" + league + "/drafts/current"
			default:
				return fmt.Errorf("pass a draft id or --league")
			}

			var raw json.RawMessage
			if err := newAPIClient(opts).get(cmd.Context(), endpoint, &raw); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				_, err := fmt.Fprintln(out, string(raw))
				return err
			}

			var ov overviewView
			if err := json.Unmarshal(raw, &ov); err != nil {
				return fmt.Errorf("failed to decode overview: %w", err)
			}
			printDraft(out, ov.Draft)
			fmt.Fprintf(out, "total picks: %d custom_pool=%t\n", ov.TotalPicks, ov.CustomPool)
			if ov.RemainingSec != nil {
				fmt.Fprintf(out, "remaining: %ds\n", *ov.RemainingSec)
			}
			for _, p := range ov.RecentPicks {
				printPick(out, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&league, "league", "", "show the league's current draft")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw overview")
	return cmd
}

// newLifecycleCmd builds start, pause and resume, which share a shape.
func newLifecycleCmd(opts *globalOpts, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <draft-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d draftView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/drafts/"+args[0]+"/"+action, nil, &d); err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newClockCmd(opts *globalOpts) *cobra.Command {
	var current bool
	cmd := &cobra.Command{
		Use:   "clock <draft-id> <seconds>",
		Short: "Change the per-pick clock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seconds int
			if _, err := fmt.Sscan(args[1], &seconds); err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[1], err)
			}
			body := map[string]any{"seconds": seconds, "apply_to_current": current}
			var d draftView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPut, "/drafts/"+args[0]+"/clock", body, &d); err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&current, "current", false, "also restart the clock of the team on the clock")
	return cmd
}

type pickFlags struct {
	name string
	team string
}

func (f *pickFlags) body(playerID string) map[string]any {
	body := map[string]any{"player_id": playerID}
	if f.name != "" {
		body["player_name"] = f.name
	}
	if f.team != "" {
		body["team"] = f.team
	}
	return body
}

func newPickCmd(opts *globalOpts) *cobra.Command {
	f := &pickFlags{}
	cmd := &cobra.Command{
		Use:   "pick <draft-id> <player-id>",
		Short: "Pick a player for the team on the clock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p pickView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/drafts/"+args[0]+"/picks", f.body(args[1]), &p); err != nil {
				return err
			}
			printPick(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "player display name")
	cmd.Flags().StringVar(&f.team, "team", "", "team making the pick (admin tokens only)")
	return cmd
}

func newForceCmd(opts *globalOpts) *cobra.Command {
	f := &pickFlags{}
	cmd := &cobra.Command{
		Use:   "force <draft-id> <player-id>",
		Short: "Record a pick as commissioner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p pickView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/drafts/"+args[0]+"/force-pick", f.body(args[1]), &p); err != nil {
				return err
			}
			printPick(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "player display name")
	cmd.Flags().StringVar(&f.team, "team", "", "team expected on the clock")
	return cmd
}

func newUndoCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <draft-id>",
		Short: "Take back the most recent pick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d draftView
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodDelete, "/drafts/"+args[0]+"/picks/last", nil, &d); err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

type queueView struct {
	Team      string   `json:"team"`
	PlayerIDs []string `json:"player_ids"`
}

func printQueue(w io.Writer, q queueView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "QUEUE\t%s\n", q.Team)
	for i, id := range q.PlayerIDs {
		fmt.Fprintf(tw, "%d\t%s\n", i+1, id)
	}
	return tw.Flush()
}

func newQueueCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Read or replace a team's autopick queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <draft-id> <team>",
		Short: "Show a team's queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var q queueView
			if err := newAPIClient(opts).get(cmd.Context(), "/drafts/"+args[0]+"/queues/"+args[1], &q); err != nil {
				return err
			}
			return printQueue(cmd.OutOrStdout(), q)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <draft-id> <team> <player-id,...>",
		Short: "Replace a team's queue",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := []string{}
			if len(args) == 3 && args[2] != "" {
				ids = strings.Split(args[2], ",")
			}
			var q queueView
			body := map[string]any{"player_ids": ids}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPut, "/drafts/"+args[0]+"/queues/"+args[1], body, &q); err != nil {
				return err
			}
			return printQueue(cmd.OutOrStdout(), q)
		},
	})
	return cmd
}
