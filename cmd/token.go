package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the cached device token",
	}

	cmd.AddCommand(
		newTokenFetchCmd(app),
		newTokenClearCmd(app),
	)

	return cmd
}

func newTokenFetchCmd(app *app) *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Request a fresh device token from the cloud and cache it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device, err := resolveDevice(cmd.Context(), app, deviceID)
			if err != nil {
				return err
			}

			err = runTokenFetchSpinner(cmd.Context(), cmd.ErrOrStderr(), "Requesting device token...", func(ctx context.Context) error {
				_, err := app.provisioning.RefreshToken(ctx, device.ID)
				return err
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "token cached for device %s\n", device.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device ID (defaults to the only configured device)")

	return cmd
}

func newTokenClearCmd(app *app) *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached device token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device, err := resolveDevice(cmd.Context(), app, deviceID)
			if err != nil {
				return err
			}

			if err := app.provisioning.ClearToken(cmd.Context(), device.ID); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "token cleared for device %s\n", device.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device ID (defaults to the only configured device)")

	return cmd
}
