package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type scheduleFile struct {
	Epochs Schedule `yaml:"epochs"`
}

// LoadFile reads a YAML rule schedule. An empty path returns the default schedule.
//
//	epochs:
//	  - from: 0
//	    rules:
//	      name: legacy
//	      live_metric: live_auroc
//	      weighting: slots
//	      fill: 0.4
func LoadFile(path string) (Schedule, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML rule schedule and validates it. Rulesets that leave
// logloss_threshold unset get the default threshold.
func Parse(data []byte) (Schedule, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule schedule: %w", err)
	}
	for i := range f.Epochs {
		if f.Epochs[i].Rules.LoglossThreshold == 0 {
			f.Epochs[i].Rules.LoglossThreshold = DefaultLoglossThreshold
		}
	}
	if err := f.Epochs.Validate(); err != nil {
		return nil, err
	}
	return f.Epochs, nil
}
