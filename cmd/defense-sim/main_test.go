package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/kb"
)

const testScenario = `
sites:
  - id: base
    hosts_coordinator: true
pools:
  - id: pool-1
    site: base
    capacity: 4
sensors:
  - id: tower-1
    range: 30
hostiles:
  - id: raider-1
    category: low_tech
    x: 20
    health: 40
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadScenarioFile(t *testing.T) {
	path := writeScenario(t, testScenario)

	sc, err := loadScenarioFile(kb.NewWorld(), path)
	if err != nil {
		t.Fatalf("loadScenarioFile: %v", err)
	}
	if sc.HostSite != "base" || len(sc.Pools) != 1 || len(sc.Sensors) != 1 {
		t.Fatalf("scenario = %+v", sc)
	}
}

func TestLoadScenarioFileMissing(t *testing.T) {
	_, err := loadScenarioFile(kb.NewWorld(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing scenario file")
	}
}

func TestValidateCommand(t *testing.T) {
	scenarioPath = writeScenario(t, testScenario)

	if err := validateCmd.RunE(validateCmd, nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
