package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treefs/treefs/pkg/registry"
)

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Manage filesystems",
}

var fsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		env, err := openEnvironment(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.reg.Create(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("filesystem %q created\n", args[0])
		return nil
	},
}

var fsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an empty, unexported filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		env, err := openEnvironment(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.reg.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("filesystem %q deleted\n", args[0])
		return nil
	},
}

var fsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered filesystems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		env, err := openEnvironment(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		if env.reg.Count() == 0 {
			fmt.Println("no filesystems registered")
			return nil
		}

		fmt.Printf("%-32s %s\n", "NAME", "EXPORTED")
		return env.reg.Scan(func(e registry.Entry) error {
			exported := "no"
			if e.Exported {
				exported = "yes"
			}
			fmt.Printf("%-32s %s\n", e.Name, exported)
			return nil
		})
	},
}

func init() {
	fsCmd.AddCommand(fsCreateCmd)
	fsCmd.AddCommand(fsDeleteCmd)
	fsCmd.AddCommand(fsListCmd)
}
