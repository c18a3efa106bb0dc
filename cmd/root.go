package cmd

import (
	"context"
	"fmt"

	"github.com/michaelpento.lv/swapquote/config"
	"github.com/michaelpento.lv/swapquote/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "swapquote",
	Short: "Best-price swap quotes across AMM exchanges",
	Long: `swapquote computes the best achievable swap between two tokens across
the constant product and concentrated liquidity exchanges of a network,
reading pair reserves and quoter results directly from chain nodes.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file in JSON (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, quoteCmd, networksCmd)
}

// loadConfig loads the environment and config, then builds the global logger
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Debug = true
	}

	utils.InitLogger(utils.LogOptions{
		Debug:       cfg.Log.Debug,
		OutputPaths: cfg.Log.OutputPaths,
	})
	return cfg, nil
}
