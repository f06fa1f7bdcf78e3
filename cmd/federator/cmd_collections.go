package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oit-uog/solr-federator/config"
	"github.com/oit-uog/solr-federator/internal/coordinator"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Discover and print the upstream's collection set, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}

		co := coordinator.New(config.APIURL(), config.DefaultQueryRows(), config.QueryCacheTTL())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		names, err := co.ListCollections(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "COLLECTION")
		fmt.Fprintln(w, "----------")
		for _, n := range names {
			fmt.Fprintln(w, n)
		}
		return w.Flush()
	},
}
