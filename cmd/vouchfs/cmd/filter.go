package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// filterCmd represents the bloom filter maintenance commands
var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Commands to maintain the deduplication bloom filter",
}

var filterRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the bloom filter from the chunk table",
	Long: `Rebuild the bloom filter from the authoritative chunk table.

Useful after resizing the filter or when its estimated false positive rate
has drifted too high for the current chunk population.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		if err := eng.RebuildFilter(ctx); err != nil {
			wrapFatalln("rebuild filter", err)
			return
		}
		infoLogger.Println("bloom filter rebuilt")
	},
}

func init() {
	filterCmd.AddCommand(filterRebuildCmd)
	rootCmd.AddCommand(filterCmd)
}
