package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/worldkeep/worldkeep/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the worldkeep version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
