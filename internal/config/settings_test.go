package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piwi3910/FabriCut/internal/model"
)

func TestSaveAndLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles", "planning.json")

	s := model.DefaultPlanningSettings()
	s.Layout.SheetSetupMins = 12
	s.Costs.Currency = "EUR"
	s.LayPlan.GarmentsPerMarker = 8

	if err := SaveSettings(path, s); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if loaded.Layout.SheetSetupMins != 12 {
		t.Errorf("expected SheetSetupMins=12, got %f", loaded.Layout.SheetSetupMins)
	}
	if loaded.Costs.Currency != "EUR" {
		t.Errorf("expected Currency=EUR, got %s", loaded.Costs.Currency)
	}
	if loaded.LayPlan.GarmentsPerMarker != 8 {
		t.Errorf("expected GarmentsPerMarker=8, got %d", loaded.LayPlan.GarmentsPerMarker)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "planning.json")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	defaults := model.DefaultPlanningSettings()
	if s != defaults {
		t.Errorf("expected defaults for missing file, got %+v", s)
	}
}

func TestLoadSettingsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planning.json")
	if err := os.WriteFile(path, []byte(`{"layout":{"piece_handling_mins":0.8}}`), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Layout.PieceHandlingMins != 0.8 {
		t.Errorf("expected PieceHandlingMins=0.8, got %f", s.Layout.PieceHandlingMins)
	}
	if s.Layout.SheetSetupMins != model.DefaultPlanningSettings().Layout.SheetSetupMins {
		t.Errorf("expected missing SheetSetupMins to default, got %f", s.Layout.SheetSetupMins)
	}
}

func TestLoadSettingsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planning.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("expected error for corrupt file")
	}
}
