package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/lockpad/internal/domain"
)

func newDeviceCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage device profiles",
	}

	cmd.AddCommand(
		newDeviceAddCmd(app),
		newDeviceListCmd(app),
		newDeviceShowCmd(app),
	)

	return cmd
}

func newDeviceAddCmd(app *app) *cobra.Command {
	var (
		id         string
		label      string
		secretHash string
		identity   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a device profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device := domain.Device{
				ID:         domain.DeviceID(id),
				Label:      label,
				SecretHash: secretHash,
				Identity:   identity,
			}
			if err := app.provisioning.AddDevice(cmd.Context(), device); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "device %s saved\n", strings.TrimSpace(id))
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Device ID")
	cmd.Flags().StringVar(&label, "label", "", "Human readable device name sent with lock requests")
	cmd.Flags().StringVar(&secretHash, "secret-hash", "", "Device secret hash used to request tokens")
	cmd.Flags().StringVar(&identity, "identity", "", "Owner identity sent with token requests")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("secret-hash")

	return cmd
}

func newDeviceListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := app.provisioning.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			for _, device := range devices {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", device.ID, device.Label)
			}

			return nil
		},
	}
}

func newDeviceShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [device-id]",
		Short: "Show a device profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}

			device, err := resolveDevice(cmd.Context(), app, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "id:          %s\n", device.ID)
			_, _ = fmt.Fprintf(out, "label:       %s\n", device.Label)
			_, _ = fmt.Fprintf(out, "secret hash: %s\n", maskSecret(device.SecretHash))
			if device.Identity != "" {
				_, _ = fmt.Fprintf(out, "identity:    %s\n", device.Identity)
			}

			return nil
		},
	}
}

// resolveDevice loads the device with id, or the only configured device when
// id is empty.
func resolveDevice(ctx context.Context, app *app, id string) (domain.Device, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		return app.provisioning.GetDevice(ctx, domain.DeviceID(id))
	}

	devices, err := app.provisioning.ListDevices(ctx)
	if err != nil {
		return domain.Device{}, err
	}

	switch len(devices) {
	case 0:
		return domain.Device{}, errors.New("no device configured; run `lockpad device add` first")
	case 1:
		return devices[0], nil
	default:
		return domain.Device{}, fmt.Errorf("%d devices configured; specify which one to use", len(devices))
	}
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}
