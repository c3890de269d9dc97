package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// filesCmd represents the file related commands
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Commands to manage stored files",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	Long:  "List stored files, optionally restricted to one owner",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		files, err := eng.ListFiles(ctx, vouchfsFlags.file.owner)
		if err != nil {
			wrapFatalln("list files", err)
			return
		}
		for _, f := range files {
			infoLogger.Printf("%s owner:%s size:%d chunks:%d created:%s",
				f.ID, f.Owner, f.Size, len(f.Chunks), f.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a file",
	Long: `Delete a file record and release its chunk references.

Chunks still referenced by other files are untouched. Chunk bytes whose
reference count drops to zero become eligible for reclamation but are not
physically removed by this command.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		if err := eng.DeleteFile(ctx, vouchfsFlags.file.id, vouchfsFlags.file.owner); err != nil {
			wrapFatalln("delete file", err)
			return
		}
		infoLogger.Printf("deleted file %s", vouchfsFlags.file.id)
	},
}

func init() {
	addOwnerFlag(filesListCmd)

	requiredFlags := []string{addFileFlag(filesDeleteCmd)}
	requiredFlags = append(requiredFlags, addOwnerFlag(filesDeleteCmd))
	for _, flag := range requiredFlags {
		if err := filesDeleteCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesDeleteCmd)
	rootCmd.AddCommand(filesCmd)
}
