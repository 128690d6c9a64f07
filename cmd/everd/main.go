package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "everd",
	Short: "Permanent content archive with a Farcaster bot and on-chain references",
	Long: `everd preserves URLs, casts, papers, and books: it extracts metadata,
pins it to IPFS, and queues an NFT mint so every save has a durable
on-chain reference. It also runs the Farcaster bot that responds to
mentions like "evermark this cast".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the everd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("everd version %s\n", version)
	},
}
