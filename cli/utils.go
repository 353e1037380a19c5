package cli

import (
	"encoding/json"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprint(cmd.ErrOrStderr(), "\nerror: ")
	color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%s\n\n", err.Error())
}

func logWarnCmd(cmd cobra.Command, msg string) {
	boldYellow := color.New(color.FgYellow, color.Bold)
	boldYellow.Fprint(cmd.OutOrStdout(), "\nwarning: ")
	color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "%s\n", msg)
}

func logSuccessCmd(cmd cobra.Command, msg string) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "\n%s\n\n", msg)
}

func logUsageCmd(cmd cobra.Command, usage string) {
	color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "\nusage: %s\n\n", usage)
}

func logJSONCmd(cmd cobra.Command, iList ...any) {
	for _, i := range iList {
		m, err := json.MarshalIndent(i, "", "  ")
		if err != nil {
			logErrorCmd(cmd, err)

			return
		}

		cmd.Printf("\n%s\n\n", string(m))
	}
}
