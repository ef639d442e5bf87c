package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lockpad",
		Short:         "lockpad: challenge-response peripheral that keeps a machine unlocked",
		Long:          "lockpad simulates a peripheral that answers controller challenges with an HMAC of a cloud-provisioned device token, tracks which controllers authenticated, and asks the cloud to lock the machine once their sessions expire.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.closeLogger()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newDeviceCmd(app),
		newTokenCmd(app),
		newServeCmd(app),
		newStatusCmd(app),
		newControllerCmd(app),
	)

	return rootCmd
}
