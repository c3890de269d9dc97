package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// verifyCmd is the command to verify stored file integrity
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of a stored file",
	Long: `Verify the integrity of a stored file.

By default every chunk is re-digested and the Merkle root is recomputed
against the stored root. With --chunk a single chunk is checked through its
inclusion proof instead, without reading the rest of the file.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		fileID := vouchfsFlags.file.id
		if vouchfsFlags.verify.chunk >= 0 {
			if _, err := eng.VerifyChunk(ctx, fileID, vouchfsFlags.verify.chunk); err != nil {
				wrapFatalln("verify chunk", err)
				return
			}
			infoLogger.Printf("file %s chunk %d verified against root", fileID, vouchfsFlags.verify.chunk)
			return
		}

		report, err := eng.VerifyIntegrity(ctx, fileID)
		if err != nil {
			wrapFatalln("verify file", err)
			return
		}
		infoLogger.Printf("file %s verified, %d chunks intact", fileID, report.Chunks)
	},
}

func init() {
	requiredFlags := []string{addFileFlag(verifyCmd)}
	addChunkIndexFlag(verifyCmd)
	for _, flag := range requiredFlags {
		if err := verifyCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(verifyCmd)
}
