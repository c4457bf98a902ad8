package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var endpointOptions string

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Manage filesystem endpoint bindings",
}

var endpointCreateCmd = &cobra.Command{
	Use:   "create <filesystem>",
	Short: "Export a filesystem through a protocol endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		env, err := openEnvironment(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.reg.EndpointCreate(ctx, args[0], endpointOptions); err != nil {
			return err
		}
		fmt.Printf("endpoint for %q created\n", args[0])
		return nil
	},
}

var endpointDeleteCmd = &cobra.Command{
	Use:   "delete <filesystem>",
	Short: "Remove a filesystem's endpoint binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		env, err := openEnvironment(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.reg.EndpointDelete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("endpoint for %q deleted\n", args[0])
		return nil
	},
}

func init() {
	endpointCreateCmd.Flags().StringVar(&endpointOptions, "options", "", "opaque protocol option string stored with the binding")

	endpointCmd.AddCommand(endpointCreateCmd)
	endpointCmd.AddCommand(endpointDeleteCmd)
}
