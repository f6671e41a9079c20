/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/booktran/internal/cache"
)

var cacheEvictAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the translation memory cache",
	Long:  `Inspect and prune the SQLite translation memory cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.New(viper.GetString("cache-db"))
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer c.Close()

		stats, err := c.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total entries: %d\n", stats.TotalEntries)
		if stats.TotalEntries > 0 {
			fmt.Printf("Oldest use:    %s\n", stats.OldestUse.Format("2006-01-02 15:04"))
			fmt.Printf("Newest use:    %s\n", stats.NewestUse.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Evict entries unused for longer than the threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.New(viper.GetString("cache-db"))
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer c.Close()

		n, err := c.EvictOlderThan(context.Background(), cacheEvictAge)
		if err != nil {
			return fmt.Errorf("failed to evict entries: %w", err)
		}

		fmt.Printf("Evicted %d entries.\n", n)
		return nil
	},
}

func init() {
	cacheEvictCmd.Flags().DurationVar(&cacheEvictAge, "older-than", 30*24*time.Hour, "evict entries unused for this long")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
	rootCmd.AddCommand(cacheCmd)
}
