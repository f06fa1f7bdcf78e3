package main

import (
	"github.com/spf13/cobra"

	"github.com/oit-uog/solr-federator/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Discover backends and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}
