package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	// keep names of fields the same as the serialized names
	Metadata      string  `json:"metadata" yaml:"metadata"`           // Directory holding the metadata tables
	Blob          string  `json:"blob" yaml:"blob"`                   // Directory holding chunk bytes
	Algorithm     string  `json:"algorithm" yaml:"algorithm"`         // Digest algorithm for chunks and trees
	ChunkSize     uint32  `json:"chunksize" yaml:"chunksize"`         // Content block size in bytes, 0 for the default
	FilterEntries int     `json:"filterentries" yaml:"filterentries"` // Expected chunk count for the bloom filter
	FilterFPRate  float64 `json:"filterfprate" yaml:"filterfprate"`   // Target bloom false positive rate
	CacheChunks   int     `json:"cachechunks" yaml:"cachechunks"`     // Read cache capacity in chunks
	SkipVerify    bool    `json:"skipverify" yaml:"skipverify"`       // Skip re-digesting chunk bytes on read
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// setStoreParams fills flags left at their zero value from the config file
func (c *CLIConfig) setStoreParams(flags *flagsT) {
	if flags.store.metadataPath == "" {
		flags.store.metadataPath = c.Metadata
	}
	if flags.store.blobPath == "" {
		flags.store.blobPath = c.Blob
	}
	if flags.store.algorithm == "" {
		flags.store.algorithm = c.Algorithm
	}
	if flags.store.chunkSize == 0 {
		flags.store.chunkSize = c.ChunkSize
	}
	if flags.store.filterEntries == 0 {
		flags.store.filterEntries = c.FilterEntries
	}
	if flags.store.filterFPRate == 0 {
		flags.store.filterFPRate = c.FilterFPRate
	}
	if flags.store.cacheChunks == 0 {
		flags.store.cacheChunks = c.CacheChunks
	}
	if c.SkipVerify {
		flags.store.skipVerify = true
	}
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the vouchfs config",
	Long: `Commands to manage the vouchfs CLI config.

Configuration for vouchfs is the common set of settings that do not change
across runs, analogous to "git config ...".`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := yaml.Marshal(config)
		if err != nil {
			wrapFatalln("marshal config", err)
			return
		}
		infoLogger.Print(string(out))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
