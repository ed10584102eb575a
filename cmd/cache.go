package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/philhumber/wineApp-sub000/internal/enrich"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the enrichment cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		count, err := env.Cache.Count(cmd.Context())
		if err != nil {
			return err
		}
		keys, err := env.Cache.Keys(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("entries: %d\n", count)
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <producer> <wine> [vintage]",
	Short: "Show the cached entry for a wine",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		vintage := ""
		if len(args) == 3 {
			vintage = args[2]
		}
		key := enrich.ExpandedKey(args[0], args[1], vintage)
		entry, err := env.Cache.Get(cmd.Context(), key)
		if err != nil {
			return err
		}
		if entry == nil {
			return eris.Errorf("no entry for %s", key)
		}
		return printJSON(entry)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Delete a cached entry by canonical key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		existed, err := env.Cache.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !existed {
			fmt.Println("not found")
			return nil
		}
		fmt.Println("deleted")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheGetCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
