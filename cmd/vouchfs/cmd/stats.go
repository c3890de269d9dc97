package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// statsCmd is the command to report storage statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report storage statistics",
	Long: `Report storage statistics: file and share counts, logical versus
physically stored chunks and bytes, the resulting deduplication ratio and
the bloom filter's estimated false positive rate.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		stats, err := eng.Stats(ctx)
		if err != nil {
			wrapFatalln("collect stats", err)
			return
		}
		infoLogger.Printf("files:               %d", stats.TotalFiles)
		infoLogger.Printf("shares:              %d", stats.TotalShares)
		infoLogger.Printf("chunk references:    %d", stats.TotalChunks)
		infoLogger.Printf("unique chunks:       %d", stats.UniqueChunks)
		infoLogger.Printf("logical bytes:       %d", stats.TotalLogicalBytes)
		infoLogger.Printf("physical bytes:      %d", stats.UniquePhysicalBytes)
		infoLogger.Printf("dedup ratio:         %.4f", stats.DedupRatio)
		infoLogger.Printf("bloom fp estimate:   %.6f", stats.BloomFalsePositives)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
