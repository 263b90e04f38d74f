package logflags

import "testing"

func TestSetupRejectsOutputWithoutLog(t *testing.T) {
	if err := Setup(false, "mmu"); err != errLogstrWithoutLog {
		t.Errorf("Setup(false, mmu) = %v, want %v", err, errLogstrWithoutLog)
	}
}

func TestSetupEnablesComponents(t *testing.T) {
	monitor, mmu, sim = false, false, false

	if err := Setup(true, "monitor,mmu"); err != nil {
		t.Fatal(err)
	}
	if !Monitor() || !MMU() {
		t.Errorf("Monitor() = %v, MMU() = %v, want both enabled", Monitor(), MMU())
	}
	if Sim() {
		t.Error("Sim() enabled without being named")
	}
}

func TestSetupDefaultsToMonitor(t *testing.T) {
	monitor, mmu, sim = false, false, false

	if err := Setup(true, ""); err != nil {
		t.Fatal(err)
	}
	if !Monitor() {
		t.Error("empty component list should enable the monitor logger")
	}
	if MMU() || Sim() {
		t.Error("empty component list enabled more than the monitor logger")
	}
}
