package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/origctl/internal/bluez"
	"github.com/muurk/origctl/internal/ui"
)

var (
	devicesAdapter   string
	devicesSupported bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List Bluetooth devices known to BlueZ",
	Long: `List the Bluetooth devices known to BlueZ, supported earbuds first.

Earbuds whose name contains YUANDAO, OriG or NiceHCK are marked supported.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesAdapter, "adapter", bluez.DefaultAdapter, "Bluetooth adapter")
	devicesCmd.Flags().BoolVar(&devicesSupported, "supported", false, "Only list supported earbuds")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	client := bluez.NewClient(devicesAdapter)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := client.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if devicesSupported {
		devices = supportedOnly(devices)
	}

	fmt.Println(ui.NewView().Devices(devices))
	return nil
}

func supportedOnly(devices []bluez.DeviceInfo) []bluez.DeviceInfo {
	out := devices[:0:0]
	for _, d := range devices {
		if d.Supported() {
			out = append(out, d)
		}
	}
	return out
}
