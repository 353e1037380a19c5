package cli_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/rotor/cli"
)

const validConfig = `
[store]
address = "192.168.1.10"
port = "5432"
name = "fl_coordination"
data_path = "/var/lib/rotor"

[node]
name = "node-1"
ip = "192.168.1.20"
port = "50051"
store_address = "192.168.1.10"
registration_threshold = 4
aggregation_threshold = 0.5
semi_decentralized = true
enable_rotation = true
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func runCheck(t *testing.T, args ...string) error {
	t.Helper()

	cmd := cli.NewCheckCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	return cmd.Execute()
}

func TestCheckValidConfig(t *testing.T) {
	assert.Nil(t, runCheck(t, writeConfig(t, "a.toml", validConfig)))
}

func TestCheckMissingFile(t *testing.T) {
	assert.Error(t, runCheck(t, filepath.Join(t.TempDir(), "missing.toml")))
}

func TestCheckRotationRequiresSemiDecentralized(t *testing.T) {
	cfg := `
[store]
address = "192.168.1.10"
name = "fl_coordination"
data_path = "/var/lib/rotor"

[node]
name = "node-1"
port = "50051"
registration_threshold = 4
aggregation_threshold = 0.5
semi_decentralized = false
enable_rotation = true
`
	assert.Error(t, runCheck(t, writeConfig(t, "a.toml", cfg)))
}

func TestCheckStoreAddressMismatch(t *testing.T) {
	other := `
[store]
address = "10.0.0.99"
name = "fl_coordination"
data_path = "/var/lib/rotor"
`
	err := runCheck(t,
		writeConfig(t, "a.toml", validConfig),
		writeConfig(t, "b.toml", other),
	)
	assert.Error(t, err)
}

func TestCheckThresholdTooLow(t *testing.T) {
	cfg := `
[store]
address = "192.168.1.10"
name = "fl_coordination"
data_path = "/var/lib/rotor"

[node]
name = "node-1"
port = "50051"
registration_threshold = 1
aggregation_threshold = 0.5
semi_decentralized = true
`
	assert.Error(t, runCheck(t, writeConfig(t, "a.toml", cfg)))
}
