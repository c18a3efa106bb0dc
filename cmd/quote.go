package cmd

import (
	"encoding/json"
	"os"

	"github.com/michaelpento.lv/swapquote/cmd/app"
	"github.com/michaelpento.lv/swapquote/quote"
	"github.com/michaelpento.lv/swapquote/utils"

	"github.com/spf13/cobra"
)

var quoteArgs quote.RawRequest

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print the best quote for one swap",
	Example: `  swapquote quote --network eth \
    --from 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 \
    --to 0xdAC17F958D2ee523a2206206994597C13D831ec7 --amount 1.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer utils.CleanupLogger()

		req, err := quote.ParseRequest(quoteArgs, cfg.DefaultSlippageBasisPoints)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, utils.GetLogger())
		if err != nil {
			return err
		}
		defer a.Stop()

		result, err := a.Service.Quote(ctx, req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteArgs.Network, "network", "", "network id, e.g. eth")
	f.StringVar(&quoteArgs.From, "from", "", "address of the token sold")
	f.StringVar(&quoteArgs.To, "to", "", "address of the token bought")
	f.StringVar(&quoteArgs.Amount, "amount", "", "amount sold, in token units")
	f.StringVar(&quoteArgs.Slippage, "slippage", "", "slippage tolerance in basis points")
	f.StringVar(&quoteArgs.Sender, "sender", "", "address receiving the output")
	f.StringVar(&quoteArgs.Family, "family", "", "comma separated protocol families (v2, v3)")

	for _, name := range []string{"network", "from", "to", "amount"} {
		_ = quoteCmd.MarkFlagRequired(name)
	}
}
