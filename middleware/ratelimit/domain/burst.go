package domain

import (
	"strings"
	"time"
)

// BurstLevel classifica a severidade de um pico. Totalmente ordenado:
// BurstNone < BurstLow < BurstMedium < BurstHigh < BurstCritical.
type BurstLevel int

const (
	BurstNone BurstLevel = iota
	BurstLow
	BurstMedium
	BurstHigh
	BurstCritical
)

// BurstLevels lista os níveis que bloqueiam, do menor para o maior.
var BurstLevels = []BurstLevel{BurstLow, BurstMedium, BurstHigh, BurstCritical}

func (l BurstLevel) String() string {
	switch l {
	case BurstLow:
		return "low"
	case BurstMedium:
		return "medium"
	case BurstHigh:
		return "high"
	case BurstCritical:
		return "critical"
	default:
		return "none"
	}
}

func ParseBurstLevel(s string) (BurstLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return BurstLow, true
	case "medium":
		return BurstMedium, true
	case "high":
		return BurstHigh, true
	case "critical":
		return BurstCritical, true
	}
	return BurstNone, false
}

// ClassifyBurst aplica os múltiplos do threshold:
// >4x critical, >2x high, >=1.5x medium, >1x low.
func ClassifyBurst(count int64, threshold int) BurstLevel {
	if threshold <= 0 {
		return BurstNone
	}
	t := int64(threshold)
	switch {
	case count > 4*t:
		return BurstCritical
	case count > 2*t:
		return BurstHigh
	case 2*count >= 3*t:
		return BurstMedium
	case count > t:
		return BurstLow
	default:
		return BurstNone
	}
}

type BurstObservation struct {
	RequestCount int64
	IsBurst      bool
	Level        BurstLevel
	Degraded     bool
}

// BurstPolicy configura o detector de picos.
type BurstPolicy struct {
	Threshold      int
	Window         time.Duration
	BlockDurations map[BurstLevel]time.Duration
}

func (p BurstPolicy) BlockDuration(level BurstLevel) time.Duration {
	return p.BlockDurations[level]
}

// ThresholdFor ajusta o threshold à cota do sujeito: o ritmo uniforme da cota
// projetado na janela curta nunca conta como pico.
// Resultado = max(Threshold, ceil(quota.Limit × Window / quota.Window)).
func (p BurstPolicy) ThresholdFor(quota Policy) int {
	if !quota.Valid() || p.Window <= 0 {
		return p.Threshold
	}
	bw := p.Window.Milliseconds()
	qw := quota.Window().Milliseconds()
	pace := (int64(quota.Limit)*bw + qw - 1) / qw
	if pace > int64(p.Threshold) {
		return int(pace)
	}
	return p.Threshold
}

func (p BurstPolicy) Validate() error {
	if p.Threshold <= 0 {
		return NewPolicyError("burst.threshold", "must be > 0")
	}
	if p.Window <= 0 {
		return NewPolicyError("burst.window", "must be > 0")
	}
	var prev time.Duration
	for _, level := range BurstLevels {
		d := p.BlockDurations[level]
		if d <= prev {
			return NewPolicyError("burst.block."+level.String(), "block durations must be > 0 and strictly increase with level")
		}
		prev = d
	}
	return nil
}

func DefaultBurstPolicy() BurstPolicy {
	return BurstPolicy{
		Threshold: 100,
		Window:    10 * time.Second,
		BlockDurations: map[BurstLevel]time.Duration{
			BurstLow:      120 * time.Second,
			BurstMedium:   600 * time.Second,
			BurstHigh:     1800 * time.Second,
			BurstCritical: 3600 * time.Second,
		},
	}
}
