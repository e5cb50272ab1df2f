package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	browseropts "github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/config"
)

func newBotTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open bot.sannysoft.com to audit the browser fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			o, err := browseropts.LaunchOptionsFrom(cfg, cfg.Account.Identity)
			if err != nil {
				return err
			}
			o.Headless = false // so you can see it

			log := logger()
			log.Info("opening bot.sannysoft.com with stealth browser options", zap.String("user_agent", o.UserAgent))

			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), browseropts.Options(o)...)
			defer cancel()
			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			go func() {
				if err := chromedp.Run(ctx, chromedp.Navigate("https://bot.sannysoft.com")); err != nil {
					log.Error("failed to navigate", zap.Error(err))
				}
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to end program...")
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			return nil
		},
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|report>",
		Short:     "Open the config file, the cache directory or the latest run report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "cache", "report"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			var err error
			switch args[0] {
			case "config":
				path = cfgFile
				if path == "" {
					path, err = config.ConfigPath()
				}
			case "cache":
				path, err = config.CacheDir()
			case "report":
				a, err := newApp()
				if err != nil {
					return err
				}
				return a.ViewLastReport()
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}
			return browser.OpenFile(path)
		},
	}
}
