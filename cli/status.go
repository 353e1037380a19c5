package cli

import (
	"github.com/spf13/cobra"

	"github.com/absmach/rotor/store"
)

var storePath string

// SetStorePath points the status commands at the coordination store file.
func SetStorePath(path string) {
	storePath = path
}

func openStore() (*store.Database, store.Service, error) {
	db, err := store.NewDatabase(storePath)
	if err != nil {
		return nil, nil, err
	}

	return db, store.NewService(db), nil
}

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [round|agents|aggregator]",
		Short: "Coordination store status",
		Long:  `Inspect the shared coordination store: round progress, registered agents and the current aggregator.`,
	}

	roundCmd := &cobra.Command{
		Use:   "round",
		Short: "View round status",
		Long:  `View the current round counters.`,
		Run: func(cmd *cobra.Command, _ []string) {
			db, svc, err := openStore()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer db.Close()

			rs, err := svc.RoundStatus(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, rs)
		},
	}

	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List active agents",
		Long:  `List agents registered for the current round.`,
		Run: func(cmd *cobra.Command, _ []string) {
			db, svc, err := openStore()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer db.Close()

			agents, err := svc.ListActiveAgents(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, agents)
		},
	}

	aggregatorCmd := &cobra.Command{
		Use:   "aggregator",
		Short: "View current aggregator",
		Long:  `View the aggregator elected for the latest round.`,
		Run: func(cmd *cobra.Command, _ []string) {
			db, svc, err := openStore()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer db.Close()

			info, err := svc.CurrentAggregator(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, info)
		},
	}

	cmd.AddCommand(roundCmd)
	cmd.AddCommand(agentsCmd)
	cmd.AddCommand(aggregatorCmd)

	return cmd
}
