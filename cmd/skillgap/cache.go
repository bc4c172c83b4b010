package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/kalambet/skillgap/internal/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the persisted embedding cache",
}

// confirmPurge asks before deleting. Replaced in tests.
var confirmPurge = func(entries int) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Delete %d cached embeddings", entries),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func openStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding cache size",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.EmbeddingCacheStats(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Entries", "%d", st.Entries)
		printStatus("Size", "%.1f KiB", float64(st.Bytes)/1024)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached embedding",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.EmbeddingCacheStats(cmd.Context())
		if err != nil {
			return err
		}
		if st.Entries == 0 {
			printSuccess("Embedding cache is already empty")
			return nil
		}
		if !yes {
			ok, err := confirmPurge(st.Entries)
			if err != nil {
				return err
			}
			if !ok {
				printWarning("Purge cancelled")
				return nil
			}
		}

		n, err := store.PurgeEmbeddingCache(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess("Deleted %d cached embeddings", n)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
}
