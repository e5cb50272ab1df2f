package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/app"
	"github.com/kolangzi/naver-automation/internal/campaign"
	"github.com/kolangzi/naver-automation/internal/observability"
	"github.com/kolangzi/naver-automation/internal/types"
)

func newRunCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:       "run <" + strings.Join(campaign.Names, "|") + ">",
		Short:     "Run one campaign until its list is exhausted, the quota is hit or Ctrl-C",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: campaign.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			sink := observability.Sink{Progress: func(cur, total int) {
				if total > 0 {
					fmt.Fprintf(os.Stderr, "progress %d/%d\n", cur, total)
				}
			}}
			sum, err := a.RunInterruptible(cmd.Context(), app.RunOptions{
				Campaign: args[0],
				Seed:     seed,
				Sink:     sink,
			})
			printSummary(cmd, sum)
			if err != nil {
				logger().Error("run failed", zap.Error(err))
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&seed, "seed", "", "post URL whose likers the neighbor campaign visits")
	f.Bool("headless", false, "run the browser without a window")
	f.Int("run-cap", 0, "maximum successful actions in this run")
	f.Int("daily-cap", 0, "maximum successful actions per day")
	f.Bool("comment-after", false, "comment on the latest post after a neighbor request")
	f.String("message", "", "neighbor request message")
	f.String("group", "", "buddy group to visit")
	f.String("cutoff", "", "oldest post date to act on, YYYY-MM-DD (buddy and reply)")
	for flag, key := range map[string]string{
		"headless":      "browser.headless",
		"run-cap":       "quota.run_cap",
		"daily-cap":     "quota.daily_cap",
		"comment-after": "neighbor.comment_after",
		"message":       "neighbor.message",
		"group":         "buddy.group",
		"cutoff":        "buddy.cutoff_date",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	_ = v.BindPFlag("reply.cutoff_date", f.Lookup("cutoff"))
	return cmd
}

func printSummary(cmd *cobra.Command, sum types.Summary) {
	if sum.RunID == "" {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s run %s: %s\n", sum.Campaign, sum.RunID, sum.State)
	fmt.Fprintf(out, "  discovered %d, attempted %d, succeeded %d, skipped %d, failed %d, deferred %d, replayed %d\n",
		sum.Discovered, sum.Attempted, sum.Succeeded, sum.Skipped, sum.Failed, sum.Deferred, sum.Replayed)
	if sum.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", sum.Error)
	}
}
