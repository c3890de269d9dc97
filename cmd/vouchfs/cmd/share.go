package cmd

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/spf13/cobra"
)

// shareCmd represents the share related commands
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Commands to share files through hash commitments",
	Long: `Commands to share files through hash commitments.

Creating a share hands the recipient a commitment to the file's root digest
without revealing it. The sharer later reveals root and opening, and the
recipient verifies that they reproduce the commitment.`,
}

var shareCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a share",
	Long: `Create a share of a file with a recipient.

Prints the share id and the opening. The opening is not persisted anywhere:
keep it, it is needed for the reveal.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		var expiresAt *time.Time
		if vouchfsFlags.share.expiresIn > 0 {
			t := time.Now().UTC().Add(vouchfsFlags.share.expiresIn)
			expiresAt = &t
		}

		share, opening, err := eng.Share(ctx,
			vouchfsFlags.file.id, vouchfsFlags.file.owner, vouchfsFlags.share.recipient, expiresAt)
		if err != nil {
			wrapFatalln("create share", err)
			return
		}
		infoLogger.Printf("share id:%s", share.ID)
		infoLogger.Printf("commitment:%s", share.Commitment)
		infoLogger.Printf("opening:%s", hex.EncodeToString(opening))
		if expiresAt != nil {
			infoLogger.Printf("expires:%s", expiresAt.Format(time.RFC3339))
		}
	},
}

var shareRevealCmd = &cobra.Command{
	Use:   "reveal",
	Short: "Reveal a share and verify it",
	Long: `Verify a reveal against a share's commitment.

Succeeds only when root and opening reproduce the stored commitment, the
root matches the shared file and the share is neither expired nor revoked.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		opening, err := hex.DecodeString(vouchfsFlags.share.opening)
		if err != nil {
			wrapFatalln("decode opening", err)
			return
		}
		share, err := eng.Reveal(ctx, vouchfsFlags.share.id, vouchfsFlags.share.root, opening)
		if err != nil {
			wrapFatalln("verify reveal", err)
			return
		}
		infoLogger.Printf("share %s verified, file:%s", share.ID, share.FileID)
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a share",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		if err := eng.Revoke(ctx, vouchfsFlags.share.id, vouchfsFlags.file.owner); err != nil {
			wrapFatalln("revoke share", err)
			return
		}
		infoLogger.Printf("revoked share %s", vouchfsFlags.share.id)
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shares addressed to a recipient",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, done, err := paramsToEngine(ctx)
		if err != nil {
			wrapFatalln("create engine", err)
			return
		}
		defer done()

		shares, err := eng.ListShares(ctx, vouchfsFlags.share.recipient)
		if err != nil {
			wrapFatalln("list shares", err)
			return
		}
		now := time.Now().UTC()
		for _, s := range shares {
			state := "active"
			switch {
			case s.Revoked:
				state = "revoked"
			case s.Expired(now):
				state = "expired"
			}
			infoLogger.Printf("%s file:%s from:%s %s", s.ID, s.FileID, s.Sharer, state)
		}
	},
}

func init() {
	createRequired := []string{addFileFlag(shareCreateCmd)}
	createRequired = append(createRequired, addOwnerFlag(shareCreateCmd))
	createRequired = append(createRequired, addRecipientFlag(shareCreateCmd))
	addExpiresInFlag(shareCreateCmd)
	for _, flag := range createRequired {
		if err := shareCreateCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}

	revealRequired := []string{addShareFlag(shareRevealCmd)}
	revealRequired = append(revealRequired, addRootFlag(shareRevealCmd))
	revealRequired = append(revealRequired, addOpeningFlag(shareRevealCmd))
	for _, flag := range revealRequired {
		if err := shareRevealCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}

	revokeRequired := []string{addShareFlag(shareRevokeCmd)}
	revokeRequired = append(revokeRequired, addOwnerFlag(shareRevokeCmd))
	for _, flag := range revokeRequired {
		if err := shareRevokeCmd.MarkFlagRequired(flag); err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}

	addRecipientFlag(shareListCmd)

	shareCmd.AddCommand(shareCreateCmd)
	shareCmd.AddCommand(shareRevealCmd)
	shareCmd.AddCommand(shareRevokeCmd)
	shareCmd.AddCommand(shareListCmd)
	rootCmd.AddCommand(shareCmd)
}
