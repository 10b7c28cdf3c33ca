package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pixelcircuits.dev/internal/sim/palette"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	FrameRateHz         int `yaml:"frame_rate_hz"`
	SnapshotEveryFrames int `yaml:"snapshot_every_frames"`
	SettleMaxPasses     int `yaml:"settle_max_passes"`
	ClockPeriodTicks    int `yaml:"clock_period_ticks"`
	MaxClientQueue      int `yaml:"max_client_queue"`

	// Palette overrides the built-in wire palette when non-empty.
	Palette []PairHex `yaml:"palette"`
}

type PairHex struct {
	Inactive string `yaml:"inactive"`
	Active   string `yaml:"active"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		FrameRateHz:         10,
		SnapshotEveryFrames: 3000,
		SettleMaxPasses:     256,
		ClockPeriodTicks:    2,
		MaxClientQueue:      16,
	}
}

// Load overlays the YAML file at path on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.FrameRateHz < 1 || t.FrameRateHz > 240:
		return fmt.Errorf("frame_rate_hz out of range: %d", t.FrameRateHz)
	case t.SnapshotEveryFrames < 0:
		return fmt.Errorf("snapshot_every_frames must be >= 0: %d", t.SnapshotEveryFrames)
	case t.SettleMaxPasses < 1:
		return fmt.Errorf("settle_max_passes must be >= 1: %d", t.SettleMaxPasses)
	case t.ClockPeriodTicks < 1:
		return fmt.Errorf("clock_period_ticks must be >= 1: %d", t.ClockPeriodTicks)
	case t.MaxClientQueue < 1:
		return fmt.Errorf("max_client_queue must be >= 1: %d", t.MaxClientQueue)
	}
	_, err := t.WirePalette()
	return err
}

// WirePalette resolves the configured palette, falling back to the default.
func (t Tuning) WirePalette() (palette.Palette, error) {
	if len(t.Palette) == 0 {
		return palette.Default(), nil
	}
	out := make(palette.Palette, 0, len(t.Palette))
	for i, p := range t.Palette {
		off, err := palette.ParseHex(p.Inactive)
		if err != nil {
			return nil, fmt.Errorf("palette[%d].inactive: %w", i, err)
		}
		on, err := palette.ParseHex(p.Active)
		if err != nil {
			return nil, fmt.Errorf("palette[%d].active: %w", i, err)
		}
		out = append(out, palette.Pair{Inactive: off, Active: on})
	}
	return out, nil
}
