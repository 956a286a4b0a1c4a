package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the server's document snapshot cache",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <document-id>",
	Short: "Drop the cached snapshot of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitOnError(newClient().InvalidateCache(cmd.Context(), args[0]))
		fmt.Printf("Invalidated %s\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit rate and batch outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := newClient().Stats(cmd.Context())
		exitOnError(err)
		if outputJSON {
			printJSON(data)
			return nil
		}
		var out struct {
			Cache struct {
				Hits     uint64 `json:"hits"`
				Misses   uint64 `json:"misses"`
				Entries  int    `json:"entries"`
				Capacity int    `json:"capacity"`
			} `json:"cache"`
			CacheTTL string `json:"cache_ttl"`
			Batches  struct {
				Applied  int64            `json:"applied"`
				Rejected int64            `json:"rejected"`
				Failed   int64            `json:"failed"`
				Retries  int64            `json:"retries"`
				ByKind   map[string]int64 `json:"failures_by_kind"`
			} `json:"batches"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		lookups := out.Cache.Hits + out.Cache.Misses
		rate := 0.0
		if lookups > 0 {
			rate = float64(out.Cache.Hits) / float64(lookups) * 100.0
		}
		fmt.Printf("Cache entries:     %d / %d (ttl %s)\n", out.Cache.Entries, out.Cache.Capacity, out.CacheTTL)
		fmt.Printf("Cache hit rate:    %.1f%% (%d of %d)\n", rate, out.Cache.Hits, lookups)
		fmt.Printf("Batches applied:   %d\n", out.Batches.Applied)
		fmt.Printf("Batches rejected:  %d\n", out.Batches.Rejected)
		fmt.Printf("Batches failed:    %d\n", out.Batches.Failed)
		fmt.Printf("Retries:           %d\n", out.Batches.Retries)
		for kind, n := range out.Batches.ByKind {
			fmt.Printf("  %-16s %d\n", kind+":", n)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	addClientFlags(cacheInvalidateCmd, statsCmd)
	rootCmd.AddCommand(cacheCmd, statsCmd)
}
