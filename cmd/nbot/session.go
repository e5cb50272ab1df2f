package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in interactively and store the session cookies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.TriggerLogin(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", a.Config().Account.Identity)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session cookies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.TriggerLogout()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and the last run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			st := a.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "identity:      %s\n", st.Identity)
			fmt.Fprintf(out, "authenticated: %t\n", st.Authenticated)
			if st.LastRun == nil {
				fmt.Fprintln(out, "last run:      none")
				return nil
			}
			r := st.LastRun
			fmt.Fprintf(out, "last run:      %s %s at %s (%d succeeded, %d failed)\n",
				r.Campaign, r.State, r.FinishedAt.Local().Format("2006-01-02 15:04"), r.Succeeded, r.Failed)
			fmt.Fprintf(out, "               %s\n", st.LastRunPath)
			return nil
		},
	}
}
