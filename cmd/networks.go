package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/michaelpento.lv/swapquote/config"

	"github.com/spf13/cobra"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the networks and exchanges of the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		catalog, err := config.LoadCatalog(cfg.NetworksFile, cfg.RPCOverrides)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NETWORK\tCHAIN ID\tBASE PAIRS\tEXCHANGES")
		for _, id := range catalog.NetworkIDs() {
			n, err := catalog.Network(id)
			if err != nil {
				return err
			}

			bases := make([]string, len(n.BasePairs))
			for i, t := range n.BasePairs {
				bases[i] = t.String()
			}
			var exchanges []string
			for _, ex := range n.Exchanges {
				if _, ok := n.Deployment(ex.ID); ok {
					exchanges = append(exchanges, fmt.Sprintf("%s (%s)", ex.ID, ex.Family))
				}
			}

			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", n.ID, n.ChainID, strings.Join(bases, ","), strings.Join(exchanges, ", "))
		}
		return w.Flush()
	},
}
