package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// downloadCmd is the command to download a file from the store
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a file",
	Long: `Download a file by its id.

The file is reassembled from its chunks and its Merkle root is recomputed
and checked against the stored root before any bytes are written out. A
verification failure aborts the download and names the offending chunk.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		var dst io.Writer = os.Stdout
		if vouchfsFlags.file.destination != "-" {
			f, err := os.Create(vouchfsFlags.file.destination)
			if err != nil {
				wrapFatalln("create destination file", err)
				return
			}
			defer f.Close()
			dst = f
		}

		record, err := eng.Download(ctx, vouchfsFlags.file.id, dst)
		if err != nil {
			wrapFatalln("download file", err)
			return
		}
		if vouchfsFlags.file.destination != "-" {
			infoLogger.Printf("downloaded %d bytes to %s", record.Size, vouchfsFlags.file.destination)
		}
	},
}

func init() {
	requiredFlags := []string{addFileFlag(downloadCmd)}
	addDestinationFlag(downloadCmd)
	for _, flag := range requiredFlags {
		if err := downloadCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(downloadCmd)
}
