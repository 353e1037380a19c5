package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/absmach/rotor/rotord"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rotord",
		Short: "Rotor Daemon",
		Long:  `Rotor Daemon manages the lifecycle of rotor processes: unified nodes and the registration-window server.`,
	}

	rootCmd.AddCommand(rotord.NewNodeCmd())
	rootCmd.AddCommand(rotord.NewWindowCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
