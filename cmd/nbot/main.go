// Command nbot runs Naver blog engagement campaigns and the maintenance
// tasks around them.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/app"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/observability"
	"github.com/kolangzi/naver-automation/internal/store"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:           "nbot",
	Short:         "Naver blog engagement automation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().String("identity", "", "Naver account identity")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("account.identity", rootCmd.PersistentFlags().Lookup("identity"))
	_ = v.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newRunCmd(), newLoginCmd(), newLogoutCmd(), newStatusCmd(), newBotTestCmd(), newOpenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

// loadConfig reads the config file, creating a default one on first use,
// and applies environment and flag overrides from v.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		if err := cfg.SaveFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "created default config at %s\n", path)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	cfg.Overlay(v)
	observability.InitializeLogger(cfg.Logger)
	return cfg, nil
}

// newApp loads the configuration and builds the application around it.
func newApp() (*app.App, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	st, err := store.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return app.New(cfg, st, app.WithLogger(observability.GetLogger()))
}

func logger() *zap.Logger { return observability.GetLogger() }
