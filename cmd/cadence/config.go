package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the cadence.yaml configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().String("path", config.FileName+"."+config.FileType, "Where to write the file")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
