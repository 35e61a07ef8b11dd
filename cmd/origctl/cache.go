package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the battery cache",
	Long: `The daemon remembers the last non-zero battery level of each earbud
and the case, and shows it while a component is not reporting.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cached battery levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := battery.DefaultFileStore()
		if err != nil {
			return err
		}
		status, err := store.Load()
		if err != nil {
			return err
		}
		fmt.Println(ui.NewHeader("Battery cache", store.Path(), []ui.Param{
			{Key: "Left", Value: status.Left.String()},
			{Key: "Right", Value: status.Right.String()},
			{Key: "Case", Value: status.Case.String()},
		}).SetPlain(ui.NewView().Plain).Render())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget cached battery levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := battery.DefaultFileStore()
		if err != nil {
			return err
		}
		if err := battery.NewCache(store).Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared %s\n", store.Path())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
