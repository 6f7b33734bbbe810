package infra

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// limitsFile é o formato YAML do arquivo de limites. Campos ausentes mantêm
// os padrões de domain.DefaultLimits.
type limitsFile struct {
	Policies map[domain.Tier]map[domain.Action]domain.Policy `yaml:"policies"`
	Login    struct {
		MaxAccountFailures  int    `yaml:"max_account_failures"`
		MaxSourceFailures   int    `yaml:"max_source_failures"`
		FailureWindow       string `yaml:"failure_window"`
		LockoutDuration     string `yaml:"lockout_duration"`
		SourceBlockDuration string `yaml:"source_block_duration"`
	} `yaml:"login"`
	Burst struct {
		Threshold int               `yaml:"threshold"`
		Window    string            `yaml:"window"`
		Block     map[string]string `yaml:"block"`
	} `yaml:"burst"`
	Adaptive struct {
		Steps []domain.LoadStep `yaml:"steps"`
	} `yaml:"adaptive"`
	Global map[string]domain.Policy `yaml:"global"`
}

// LoadLimits lê o arquivo YAML em path, aplica sobre os padrões e valida.
func LoadLimits(path string) (domain.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Limits{}, fmt.Errorf("read limits file: %w", err)
	}
	limits, err := ParseLimits(data)
	if err != nil {
		return domain.Limits{}, fmt.Errorf("%s: %w", path, err)
	}
	return limits, nil
}

func ParseLimits(data []byte) (domain.Limits, error) {
	var f limitsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return domain.Limits{}, fmt.Errorf("parse limits: %w", err)
	}

	limits := domain.DefaultLimits()
	if len(f.Policies) > 0 {
		limits.Policies = domain.PolicyTable(f.Policies)
	}

	if f.Login.MaxAccountFailures != 0 {
		limits.Login.MaxAccountFailures = f.Login.MaxAccountFailures
	}
	if f.Login.MaxSourceFailures != 0 {
		limits.Login.MaxSourceFailures = f.Login.MaxSourceFailures
	}
	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"login.failure_window", f.Login.FailureWindow, &limits.Login.FailureWindow},
		{"login.lockout_duration", f.Login.LockoutDuration, &limits.Login.LockoutDuration},
		{"login.source_block_duration", f.Login.SourceBlockDuration, &limits.Login.SourceBlockDuration},
		{"burst.window", f.Burst.Window, &limits.Burst.Window},
	}
	for _, d := range durations {
		if err := parseDurationInto(d.field, d.raw, d.dst); err != nil {
			return domain.Limits{}, err
		}
	}

	if f.Burst.Threshold != 0 {
		limits.Burst.Threshold = f.Burst.Threshold
	}
	for name, raw := range f.Burst.Block {
		level, ok := domain.ParseBurstLevel(name)
		if !ok {
			return domain.Limits{}, domain.NewPolicyError("burst.block."+name, "unknown burst level")
		}
		d := limits.Burst.BlockDurations[level]
		if err := parseDurationInto("burst.block."+name, raw, &d); err != nil {
			return domain.Limits{}, err
		}
		limits.Burst.BlockDurations[level] = d
	}

	if len(f.Adaptive.Steps) > 0 {
		limits.Adaptive = domain.AdaptivePolicy{Steps: f.Adaptive.Steps}.Normalize()
	}
	for op, p := range f.Global {
		limits.Global[op] = p
	}

	if err := limits.Validate(); err != nil {
		return domain.Limits{}, err
	}
	return limits, nil
}

func parseDurationInto(field, raw string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return domain.NewPolicyError(field, err.Error())
	}
	*dst = d
	return nil
}
