package rotor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/rotor"
)

const sampleConfig = `
[store]
address = "192.168.1.10"
port = "5432"
name = "fl_coordination"
data_path = "/var/lib/rotor"
model_path = "/var/lib/rotor/models"

[node]
name = "node-1"
ip = "192.168.1.20"
port = "50051"
store_address = "192.168.1.10"
registration_threshold = 4
aggregation_threshold = 0.5
semi_decentralized = true
enable_rotation = true

[window]
ip = "0.0.0.0"
port = "6000"
registration_window = 30
state_path = "/var/lib/rotor/window.json"

[window.database_features]
feature_db = "features.db"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rotor.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := rotor.LoadConfig(writeConfig(t, sampleConfig))
	require.Nil(t, err)

	assert.Equal(t, "192.168.1.10", cfg.Store.Address)
	assert.Equal(t, "fl_coordination", cfg.Store.Name)
	assert.Equal(t, "/var/lib/rotor/fl_coordination.db", cfg.Store.Path())

	assert.Equal(t, "node-1", cfg.Node.Name)
	assert.Equal(t, 4, cfg.Node.Threshold)
	assert.Equal(t, 0.5, cfg.Node.AggregationThreshold)
	assert.True(t, cfg.Node.SemiDecentralized)
	assert.True(t, cfg.Node.EnableRotation)

	assert.Equal(t, 30, cfg.Window.WindowSeconds)
	assert.Equal(t, map[string]string{"feature_db": "features.db"}, cfg.Window.DatabaseFeatures)

	assert.Nil(t, cfg.Store.Validate())
	assert.Nil(t, cfg.Node.Validate())
	assert.Nil(t, cfg.Window.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := rotor.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := rotor.LoadConfig(writeConfig(t, "[store\naddress = "))
	assert.Error(t, err)
}

func TestNodeConfigValidate(t *testing.T) {
	valid := rotor.NodeConfig{
		Name:                 "node-1",
		Port:                 "50051",
		Threshold:            4,
		AggregationThreshold: 0.5,
	}

	cases := []struct {
		desc   string
		mutate func(c *rotor.NodeConfig)
		ok     bool
	}{
		{
			desc:   "valid",
			mutate: func(*rotor.NodeConfig) {},
			ok:     true,
		},
		{
			desc:   "missing name",
			mutate: func(c *rotor.NodeConfig) { c.Name = "" },
		},
		{
			desc:   "missing port",
			mutate: func(c *rotor.NodeConfig) { c.Port = "" },
		},
		{
			desc:   "threshold below minimum",
			mutate: func(c *rotor.NodeConfig) { c.Threshold = 1 },
		},
		{
			desc:   "aggregation threshold zero",
			mutate: func(c *rotor.NodeConfig) { c.AggregationThreshold = 0 },
		},
		{
			desc:   "aggregation threshold above one",
			mutate: func(c *rotor.NodeConfig) { c.AggregationThreshold = 1.5 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.Nil(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestWindowConfigValidate(t *testing.T) {
	valid := rotor.WindowConfig{
		Port:          "6000",
		WindowSeconds: 30,
		StatePath:     "state.json",
	}
	assert.Nil(t, valid.Validate())

	noPort := valid
	noPort.Port = ""
	assert.Error(t, noPort.Validate())

	zeroWindow := valid
	zeroWindow.WindowSeconds = 0
	assert.Error(t, zeroWindow.Validate())

	noState := valid
	noState.StatePath = ""
	assert.Error(t, noState.Validate())
}
