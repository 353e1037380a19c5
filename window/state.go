package window

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/absmach/rotor/exchange"
)

// State is the keyed record persisted between restarts: the ordered
// participant set and the elected aggregator, if any.
type State struct {
	Participants []exchange.Participant `json:"participants"`
	Aggregator   *exchange.Participant  `json:"aggregator"`
}

func loadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			st := State{Participants: []exchange.Participant{}}
			if err := saveState(path, st); err != nil {
				return State{}, err
			}

			return st, nil
		}

		return State{}, fmt.Errorf("error reading state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("error parsing state file: %w", err)
	}
	if st.Participants == nil {
		st.Participants = []exchange.Participant{}
	}

	return st, nil
}

func saveState(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing state file: %w", err)
	}

	return nil
}
