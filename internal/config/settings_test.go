package config

import (
	"testing"

	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plateYAML = `
name: plate
use_channels: true
channel_group: Channel
channels:
  - config: DAPI
    use_channel: true
    exposure_ms: 10
    do_z_stack: true
  - config: FITC
    use_channel: true
    exposure_ms: "20"
use_slices: true
slice_z_bottom_um: -1
slice_z_top_um: 1
slice_z_step_um: 1
relative_z_slice: true
use_frames: true
num_frames: 3
interval_ms: 500
acq_order_mode: pos-time-channel-slice
`

func TestLoadSettings_YAML(t *testing.T) {
	path := testutils.WriteSettingsFile(t, "plate.yaml", plateYAML)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "plate", s.Name)
	assert.Equal(t, domain.PosTimeChannelSlice, s.AcqOrderMode)
	require.Len(t, s.Channels, 2)
	assert.Equal(t, 20.0, s.Channels[1].ExposureMs, "numeric strings are coerced")
	assert.True(t, s.Channels[0].DoZStack)
	assert.Equal(t, 3, s.FrameCount())
	assert.Equal(t, 3, s.SliceCount())
}

func TestLoadSettings_JSONWithOrdinalMode(t *testing.T) {
	path := testutils.WriteSettingsFile(t, "single.json", `{
		"name": "single",
		"use_frames": true,
		"num_frames": 2,
		"acq_order_mode": 1
	}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, domain.TimePosChannelSlice, s.AcqOrderMode)
	assert.Equal(t, 2, s.NumFrames)
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		target  error
		msg     string
	}{
		{
			name:    "unknown key",
			file:    "typo.yaml",
			content: "name: x\nnum_frame: 3\n",
			msg:     "num_frame",
		},
		{
			name:    "zero step",
			file:    "zero.yaml",
			content: "use_slices: true\nslice_z_step_um: 0\n",
			target:  domain.ErrZeroZStep,
		},
		{
			name:    "unknown order mode",
			file:    "mode.yaml",
			content: "acq_order_mode: SLICE_FIRST\n",
			target:  domain.ErrUnknownOrderMode,
		},
		{
			name:    "no channels",
			file:    "channels.yaml",
			content: "use_channels: true\nchannels:\n  - config: DAPI\n    use_channel: false\n",
			target:  domain.ErrNoChannels,
		},
		{
			name:    "malformed",
			file:    "bad.json",
			content: "{name: ",
			msg:     "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutils.WriteSettingsFile(t, tt.file, tt.content)
			_, err := LoadSettings(path)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings("does-not-exist.yaml")
	assert.ErrorContains(t, err, "failed to read")
}
