package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackToBack, cfg.Source)
	assert.Equal(t, 18, cfg.Elements)
	assert.InDelta(t, 0.005, cfg.ThresholdMeV(), 1e-12)
	assert.True(t, cfg.FastPathEnabled())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
source: positron
fixed_axis: true
polarization: random
energy_threshold_kev: 10
elements: 8
fast_path: false
workers: 3
`))
	require.NoError(t, err)

	assert.Equal(t, PositronSource, cfg.Source)
	assert.True(t, cfg.FixedAxis)
	assert.Equal(t, PolRandom, cfg.Polarization)
	assert.InDelta(t, 0.010, cfg.ThresholdMeV(), 1e-12)
	assert.Equal(t, 8, cfg.Elements)
	assert.False(t, cfg.FastPathEnabled())
	assert.Equal(t, 3, cfg.Workers)
}

func TestParse_EmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Elements, cfg.Elements)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown source", "source: laser\n", "invalid config"},
		{"negative threshold", "energy_threshold_kev: -1\n", "invalid config"},
		{"odd elements", "elements: 7\n", "even"},
		{"zero workers", "workers: 0\n", "invalid config"},
		{"unknown key", "colour: red\n", "parse config"},
		{"central on wrong side", "central: [10, 1]\n", "side A"},
		{"central wrong length", "central: [1, 10, 12]\n", "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tangle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("central: [1, 10]\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	l, err := cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, 1, l.Central(0))
	assert.Equal(t, 10, l.Central(1))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestRoles(t *testing.T) {
	cfg := Default()
	assert.Equal(t, TrackRoles{Primary: 1, Secondary: 2}, cfg.Roles())

	cfg.Source = PositronSource
	assert.Equal(t, TrackRoles{Primary: 2, Secondary: 3}, cfg.Roles())
}

func TestFingerprint(t *testing.T) {
	base := Default()
	fp, err := base.Fingerprint()
	require.NoError(t, err)
	assert.Len(t, fp, 64)

	t.Run("ignores workers", func(t *testing.T) {
		cfg := Default()
		cfg.Workers = base.Workers + 7
		got, err := cfg.Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})

	t.Run("defaults written out", func(t *testing.T) {
		on := true
		cfg := Default()
		cfg.FastPath = &on
		cfg.Central = []int{4, 13}
		got, err := cfg.Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})

	t.Run("threshold changes it", func(t *testing.T) {
		cfg := Default()
		cfg.ThresholdKeV = 6
		got, err := cfg.Fingerprint()
		require.NoError(t, err)
		assert.NotEqual(t, fp, got)
	})

	t.Run("invalid layout", func(t *testing.T) {
		cfg := Default()
		cfg.Elements = 7
		_, err := cfg.Fingerprint()
		require.Error(t, err)
	})
}
