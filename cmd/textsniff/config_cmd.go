package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/logflow/textsniff/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration files",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range a.manager.GetPaths() {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded %s\n", p)
			}
			data, err := a.manager.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var user, force bool
	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a file",
		Long: `Write the effective configuration to ./` + config.FileName + `, or to the
per-user file with --user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			switch {
			case target != "":
			case user:
				p, err := config.UserPath()
				if err != nil {
					return err
				}
				target = p
			default:
				target = config.FileName
			}

			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
			var err error
			if user && path == "" {
				target, err = a.manager.Save()
			} else {
				err = a.manager.SaveTo(target)
			}
			if err != nil {
				return err
			}
			abs, _ := filepath.Abs(target)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&user, "user", false, "Write the per-user configuration file")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	initCmd.Flags().StringVarP(&path, "output", "o", "", "Write to this path instead")

	cmd.AddCommand(show, initCmd)
	return cmd
}
