package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the compile cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. Entries live
// in two-character shard directories under the cache root; each shard
// is removed whole.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached compile results",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveCacheDir(dir)
			if err != nil {
				return err
			}

			shards, err := os.ReadDir(root)
			if os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read cache dir: %w", err)
			}

			removed := 0
			for _, shard := range shards {
				if !shard.IsDir() {
					continue
				}
				shardPath := filepath.Join(root, shard.Name())
				entries, err := os.ReadDir(shardPath)
				if err != nil {
					continue
				}
				for _, entry := range entries {
					if strings.HasSuffix(entry.Name(), ".json") {
						removed++
					}
				}
				if err := os.RemoveAll(shardPath); err != nil {
					return fmt.Errorf("remove %s: %w", shardPath, err)
				}
			}

			printSuccess("Cleared %d cached entries", removed)
			printDetail("Directory: %s", root)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "cache directory (default: the standard cache location)")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveCacheDir(dir)
			if err != nil {
				return err
			}
			fmt.Println(root)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "cache directory (default: the standard cache location)")
	return cmd
}

func resolveCacheDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return dir, nil
}
