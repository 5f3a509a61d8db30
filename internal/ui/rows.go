// ABOUTME: Parameter rows shown by the control panel
// ABOUTME: Maps each row to a field of the parameter record and its step
package ui

import (
	"fmt"
	"math"

	"github.com/mictroll/mictroll-go/pkg/audio/noise"
	"github.com/mictroll/mictroll-go/pkg/params"
)

// step is the adjustment for fractional rows
const step = 0.05

type row int

const (
	rowBreakChance row = iota
	rowDistortChance
	rowDistortAmount
	rowNoiseType
	rowNoiseAmount
	rowBitCrush
	rowBassBoost
	rowBedGain
	rowCount
)

func (r row) label() string {
	switch r {
	case rowBreakChance:
		return "Break chance"
	case rowDistortChance:
		return "Distort chance"
	case rowDistortAmount:
		return "Distort amount"
	case rowNoiseType:
		return "Noise type"
	case rowNoiseAmount:
		return "Noise amount"
	case rowBitCrush:
		return "Bit crush"
	case rowBassBoost:
		return "Bass boost"
	case rowBedGain:
		return "Background"
	}
	return "?"
}

// fraction returns the row's position in [0,1] for drawing a bar
func (r row) fraction(p params.Parameters) float64 {
	switch r {
	case rowBreakChance:
		return p.BreakChance
	case rowDistortChance:
		return p.DistortChance
	case rowDistortAmount:
		return p.DistortAmount
	case rowNoiseType:
		types := noise.Types()
		return float64(p.NoiseType) / float64(len(types)-1)
	case rowNoiseAmount:
		return p.NoiseAmount
	case rowBitCrush:
		return float64(p.BitCrush-params.MinBitCrush) / float64(params.MaxBitCrush-params.MinBitCrush)
	case rowBassBoost:
		return p.BassBoost
	case rowBedGain:
		return p.BedGain
	}
	return 0
}

func (r row) value(p params.Parameters) string {
	switch r {
	case rowNoiseType:
		return p.NoiseType.String()
	case rowBitCrush:
		if !p.Crushing() {
			return fmt.Sprintf("%d bits (off)", p.BitCrush)
		}
		return fmt.Sprintf("%d bits", p.BitCrush)
	}
	return fmt.Sprintf("%3.0f%%", r.fraction(p)*100)
}

// adjust moves the row one step in dir (-1 or +1)
func (r row) adjust(p *params.Parameters, dir int) {
	switch r {
	case rowBreakChance:
		p.BreakChance = nudge(p.BreakChance, dir)
	case rowDistortChance:
		p.DistortChance = nudge(p.DistortChance, dir)
	case rowDistortAmount:
		p.DistortAmount = nudge(p.DistortAmount, dir)
	case rowNoiseType:
		p.NoiseType = cycle(p.NoiseType, dir)
	case rowNoiseAmount:
		p.NoiseAmount = nudge(p.NoiseAmount, dir)
	case rowBitCrush:
		p.BitCrush += dir
	case rowBassBoost:
		p.BassBoost = nudge(p.BassBoost, dir)
	case rowBedGain:
		p.BedGain = nudge(p.BedGain, dir)
	}
}

func nudge(v float64, dir int) float64 {
	v = math.Round((v+float64(dir)*step)*100) / 100
	return math.Max(0, math.Min(1, v))
}

func cycle(t noise.Type, dir int) noise.Type {
	if dir >= 0 {
		return t.Next()
	}
	types := noise.Types()
	for i, candidate := range types {
		if candidate == t {
			return types[(i+len(types)-1)%len(types)]
		}
	}
	return noise.None
}
