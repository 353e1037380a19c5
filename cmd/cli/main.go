package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/absmach/rotor/cli"
)

const defStorePath = "rotor.db"

func main() {
	storePath := defStorePath

	rootCmd := &cobra.Command{
		Use:   "rotor-cli",
		Short: "Rotor CLI",
		Long:  `Rotor CLI is a command line interface for inspecting and validating a rotor deployment.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cli.SetStorePath(storePath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(
		&storePath,
		"store",
		"s",
		storePath,
		"Path to the coordination store database file",
	)

	rootCmd.AddCommand(cli.NewCheckCmd())
	rootCmd.AddCommand(cli.NewStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
