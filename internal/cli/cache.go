package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage persisted explanations",
}

// fileIDArg returns the optional file id argument, validated.
func fileIDArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if err := artifact.ValidateID("file id", args[0]); err != nil {
		return "", err
	}
	return args[0], nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [fileId]",
	Short: "Delete persisted explanations for one file, or for all files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, err := fileIDArg(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			failConfig(err)
			return nil
		}
		// Clearing always touches the durable tier, even when new writes are disabled.
		c := cache.New(cache.Options{Dir: cfg.StorageDir, Persist: true})
		n, err := c.Clear(fileID)
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached explanations.\n", n)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [fileId]",
	Short: "Show cache statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, err := fileIDArg(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			failConfig(err)
			return nil
		}
		c := cache.New(cache.Options{Dir: cfg.StorageDir, Persist: cfg.Cache.Persist})
		if !c.Persistent() {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache persistence is disabled.")
			return nil
		}
		stats, err := c.Stats(fileID)
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
