package cmd

import (
	"github.com/michaelpento.lv/swapquote/cmd/app"
	"github.com/michaelpento.lv/swapquote/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quote HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Stop()

		if err := <-a.Start(ctx); err != nil {
			log.Error("HTTP server failed", zap.Error(err))
			return err
		}
		log.Info("Shutting down gracefully...")
		return nil
	},
}
