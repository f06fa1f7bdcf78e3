// Command federator is the proxy's entry point: a small spf13/cobra CLI
// over internal/server (one root command, subcommands added in init()).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "federator",
	Short: "A federating search proxy over N Solr-backed collections",
	Long: "federator fans a single query out across independently-schema'd\n" +
		"search backends and serves the merged, paginated result over HTTP.",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(collectionsCmd)
}
