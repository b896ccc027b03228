package cmd

import (
	"context"
	"fmt"

	"github.com/michaelpento.lv/arbbot/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan cycle and print the ranked opportunities",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		cfg, _, pipeline, err := buildPipeline()
		if err != nil {
			log.Fatal("Failed to build pipeline", zap.Error(err))
		}

		opportunities := pipeline.scanner.Scan(context.Background(), cfg.AmountIn)
		if len(opportunities) == 0 {
			fmt.Println("No opportunities above threshold")
			return
		}

		for i, opp := range opportunities {
			fmt.Printf("%2d. %-12s net=%s (%.2f%%) uniswap=%s 1inch=%s\n",
				i+1,
				opp.Pair.Symbols(),
				opp.ExpectedProfit.String(),
				opp.ProfitPercentage,
				opp.UniswapOut.String(),
				opp.OneInchOut.String(),
			)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
