// Package main implements the newsrag CLI: ingest news articles into a vector
// store and answer questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML config file; empty means ~/.config/newsrag/config.yaml
	configPath string
	// envFile is loaded into the environment before the config
	envFile string
	// version information
	version = "dev"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "newsrag",
	Short: "Multimodal question answering over news articles",
	Long: `newsrag scrapes news articles (text and images), captions and embeds them
into a vector store, and answers questions by retrieving the most relevant
chunks and prompting a language model.

Configuration is read from ~/.config/newsrag/config.yaml (or --config) and
NEWSRAG_* environment variables. A .env file is loaded first when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/newsrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the newsrag version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("newsrag %s\n", version)
	},
}
