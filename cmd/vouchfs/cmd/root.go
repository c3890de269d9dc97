package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vouchfs",
	Short: "vouchfs is a content addressed, deduplicating file store",
	Long: `vouchfs stores files by the digests of their content. Identical chunks are
stored once regardless of how many files or uploads reference them, every
file carries a Merkle root that is re-verified on download, and files can
be shared through hash commitments that the recipient verifies on reveal.
`,
}

var config *CLIConfig

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main() and only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addLogLevelFlag(rootCmd)
	addMetricsFlag(rootCmd)
	addMetadataPathFlag(rootCmd)
	addBlobPathFlag(rootCmd)
}

// initConfig reads in the config file and matching environment variables
func initConfig() {
	viper.SetDefault("metadata", ".vouchfs/meta")
	viper.SetDefault("blob", ".vouchfs/blobs")
	viper.SetDefault("algorithm", "sha256")

	if cfgFile := os.Getenv("VOUCHFS_CONFIG"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.vouchfs")
		viper.AddConfigPath("/etc/vouchfs")
		viper.SetConfigName("vouchfs")
	}

	viper.SetEnvPrefix("vouchfs")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		wrapFatalln("read configuration", err)
		return
	}
	config.setStoreParams(&vouchfsFlags)
}
