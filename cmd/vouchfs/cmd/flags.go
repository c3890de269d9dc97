package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		logLevel string
		metrics  bool
	}
	store struct {
		metadataPath  string
		blobPath      string
		algorithm     string
		chunkSize     uint32
		filterEntries int
		filterFPRate  float64
		cacheChunks   int
		skipVerify    bool
	}
	file struct {
		id          string
		owner       string
		source      string
		destination string
	}
	share struct {
		id        string
		recipient string
		expiresIn time.Duration
		root      string
		opening   string
	}
	verify struct {
		chunk int
	}
}

var vouchfsFlags = flagsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	const logLevel = "loglevel"
	cmd.PersistentFlags().StringVar(&vouchfsFlags.root.logLevel, logLevel, "info",
		"The logging level, one of: info, debug, none")
	return logLevel
}

func addMetricsFlag(cmd *cobra.Command) string {
	const metrics = "metrics"
	cmd.PersistentFlags().BoolVar(&vouchfsFlags.root.metrics, metrics, false,
		"Enable metrics collection")
	return metrics
}

func addMetadataPathFlag(cmd *cobra.Command) string {
	const metadata = "metadata"
	cmd.PersistentFlags().StringVar(&vouchfsFlags.store.metadataPath, metadata, "",
		"Directory holding the metadata tables")
	return metadata
}

func addBlobPathFlag(cmd *cobra.Command) string {
	const blob = "blob"
	cmd.PersistentFlags().StringVar(&vouchfsFlags.store.blobPath, blob, "",
		"Directory holding chunk bytes")
	return blob
}

func addFileFlag(cmd *cobra.Command) string {
	const file = "file"
	cmd.Flags().StringVar(&vouchfsFlags.file.id, file, "",
		"The file id (its Merkle root digest)")
	return file
}

func addOwnerFlag(cmd *cobra.Command) string {
	const owner = "owner"
	cmd.Flags().StringVar(&vouchfsFlags.file.owner, owner, "",
		"The identity owning the file")
	return owner
}

func addSourceFlag(cmd *cobra.Command) string {
	const source = "source"
	cmd.Flags().StringVar(&vouchfsFlags.file.source, source, "",
		"The path to the file to upload, - for stdin")
	return source
}

func addDestinationFlag(cmd *cobra.Command) string {
	const destination = "destination"
	cmd.Flags().StringVar(&vouchfsFlags.file.destination, destination, "-",
		"The path to write the downloaded file to, - for stdout")
	return destination
}

func addShareFlag(cmd *cobra.Command) string {
	const share = "share"
	cmd.Flags().StringVar(&vouchfsFlags.share.id, share, "", "The share id")
	return share
}

func addRecipientFlag(cmd *cobra.Command) string {
	const recipient = "recipient"
	cmd.Flags().StringVar(&vouchfsFlags.share.recipient, recipient, "",
		"The identity the share is addressed to")
	return recipient
}

func addExpiresInFlag(cmd *cobra.Command) string {
	const expiresIn = "expires-in"
	cmd.Flags().DurationVar(&vouchfsFlags.share.expiresIn, expiresIn, 0,
		"Share validity window, e.g. 72h. Zero means no expiry")
	return expiresIn
}

func addRootFlag(cmd *cobra.Command) string {
	const root = "root"
	cmd.Flags().StringVar(&vouchfsFlags.share.root, root, "",
		"The revealed root digest, as printed at upload")
	return root
}

func addOpeningFlag(cmd *cobra.Command) string {
	const opening = "opening"
	cmd.Flags().StringVar(&vouchfsFlags.share.opening, opening, "",
		"The hex encoded opening, as printed at share creation")
	return opening
}

func addChunkIndexFlag(cmd *cobra.Command) string {
	const chunk = "chunk"
	cmd.Flags().IntVar(&vouchfsFlags.verify.chunk, chunk, -1,
		"Verify a single chunk by index through its inclusion proof instead of the whole file")
	return chunk
}
