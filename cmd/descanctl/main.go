// cmd/descanctl is the Cobra operator CLI for the admin API served by
// cmd/descannode.
//
// Usage:
//
//	descanctl status                  --server http://localhost:9000
//	descanctl search 12345             --server http://localhost:9000
//	descanctl edges deadbeef           --server http://localhost:9000
//	descanctl content cafebabe "hi"    --server http://localhost:9000
//	descanctl fault --malicious        --server http://localhost:9000
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"descan/internal/adminapi"
)

var (
	serverAddr string
	timeout    time.Duration
	sgIndex    int
)

func main() {
	root := &cobra.Command{
		Use:   "descanctl",
		Short: "Operator CLI for a DeScan overlay node's admin API",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:9000", "Admin API address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"Request timeout")
	root.PersistentFlags().IntVar(&sgIndex, "sg", 0,
		"Co-resident skip graph index to target")

	root.AddCommand(statusCmd(), searchCmd(), edgesCmd(), tripletsCmd(), contentCmd(), faultCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node health and its routing table for --sg",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminapi.NewClient(serverAddr, timeout)
			ctx := context.Background()

			health, err := c.Health(ctx)
			if err != nil {
				return err
			}
			prettyPrint(health)

			rt, err := c.RoutingTableJSON(ctx, sgIndex)
			if err != nil {
				return err
			}
			fmt.Println(rt)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <key>",
		Short: "Run a Skip Graph search for a numeric key on --sg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key uint32
			if _, err := fmt.Sscanf(args[0], "%d", &key); err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}
			c := adminapi.NewClient(serverAddr, timeout)
			resp, err := c.Search(context.Background(), sgIndex, key)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

func edgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edges <content-hash-hex>",
		Short: "Run search_edges for a hex-encoded content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminapi.NewClient(serverAddr, timeout)
			triplets, err := c.SearchEdges(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(triplets)
			return nil
		},
	}
}

func tripletsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triplets <content-hex>",
		Short: "List triplets this node holds locally for a hex-encoded label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminapi.NewClient(serverAddr, timeout)
			triplets, err := c.TripletsOfNode(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(triplets)
			return nil
		},
	}
}

func contentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content <identifier-hex> <data>",
		Short: "Enqueue a new piece of content for this node's rule engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminapi.NewClient(serverAddr, timeout)
			if err := c.EnqueueContent(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("enqueued %q\n", args[0])
			return nil
		},
	}
}

func faultCmd() *cobra.Command {
	var malicious, offline bool
	var clearMalicious, clearOffline bool

	cmd := &cobra.Command{
		Use:   "fault",
		Short: "Toggle this node's malicious/offline fault-injection flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminapi.NewClient(serverAddr, timeout)

			var maliciousPtr, offlinePtr *bool
			switch {
			case malicious:
				maliciousPtr = &malicious
			case clearMalicious:
				v := false
				maliciousPtr = &v
			}
			switch {
			case offline:
				offlinePtr = &offline
			case clearOffline:
				v := false
				offlinePtr = &v
			}

			if err := c.SetFault(context.Background(), maliciousPtr, offlinePtr); err != nil {
				return err
			}
			fmt.Println("fault flags updated")
			return nil
		},
	}
	cmd.Flags().BoolVar(&malicious, "malicious", false, "Set is_malicious=true")
	cmd.Flags().BoolVar(&clearMalicious, "no-malicious", false, "Set is_malicious=false")
	cmd.Flags().BoolVar(&offline, "offline", false, "Set is_offline=true")
	cmd.Flags().BoolVar(&clearOffline, "no-offline", false, "Set is_offline=false")
	return cmd
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
