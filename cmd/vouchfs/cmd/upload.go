package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// uploadCmd is the command to upload a file into the store
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a file",
	Long: `Upload a file into the store.

The file is split into fixed size chunks; chunks whose content is already
stored are not written again. The printed file id is the Merkle root digest
over the chunk digests and identifies the content for download, sharing and
verification.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		var src io.Reader = os.Stdin
		if vouchfsFlags.file.source != "-" {
			f, err := os.Open(vouchfsFlags.file.source)
			if err != nil {
				wrapFatalln("open source file", err)
				return
			}
			defer f.Close()
			src = f
		}

		res, err := eng.Upload(ctx, vouchfsFlags.file.owner, src)
		if err != nil {
			wrapFatalln("upload file", err)
			return
		}
		if res.AlreadyStored {
			infoLogger.Printf("content already stored, file id:%s", res.FileID)
		} else {
			infoLogger.Printf("uploaded file id:%s", res.FileID)
		}
		infoLogger.Printf("%d bytes in %d chunks, %d new, %d deduplicated",
			res.Size, res.TotalChunks, res.NewChunks, res.DuplicateChunks)
	},
}

func init() {
	requiredFlags := []string{addSourceFlag(uploadCmd)}
	requiredFlags = append(requiredFlags, addOwnerFlag(uploadCmd))
	for _, flag := range requiredFlags {
		if err := uploadCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(uploadCmd)
}
