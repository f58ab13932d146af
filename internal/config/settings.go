package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/piwi3910/FabriCut/internal/model"
)

// DefaultConfigDir returns the default directory for planning profiles.
// On all platforms this is ~/.fabricut/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".fabricut")
}

// DefaultSettingsPath returns the default path of the planning profile.
func DefaultSettingsPath() string {
	return filepath.Join(DefaultConfigDir(), "planning.json")
}

// SaveSettings persists a planning profile to the given path as JSON.
// It creates any missing parent directories automatically.
func SaveSettings(path string, settings model.PlanningSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSettings reads a planning profile from the given path.
// If the file does not exist, it returns DefaultPlanningSettings with no
// error. Values missing from the file are taken from the defaults.
func LoadSettings(path string) (model.PlanningSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.DefaultPlanningSettings(), nil
		}
		return model.PlanningSettings{}, err
	}
	var settings model.PlanningSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return model.PlanningSettings{}, err
	}
	return settings.Merge(model.DefaultPlanningSettings()), nil
}
