package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"subpilot/internal/shared/types"
)

// LoadIni loads the behavior configuration file and applies env overrides
// and defaults.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnv(&cfg.LogConf.Level, "SUBPILOT_LOG_LEVEL")
	overrideFromEnv(&cfg.OutputConf.Path, "SUBPILOT_OUTPUT_PATH")
	cfg.ApplyDefaults()
	return nil
}

// LoadSources loads the sources.json data file. A missing file yields an
// empty list rather than an error.
func LoadSources(fileName string) ([]types.Source, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.Source{}, nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources []types.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources.json: %w", err)
	}
	return sources, nil
}

func overrideFromEnv(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
