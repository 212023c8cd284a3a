package security

import (
	"testing"

	"github.com/kratoschain/kratos/core/types"
)

func testThresholds() Thresholds {
	return Thresholds{Normal: 75, Degraded: 50, Restricted: 25}
}

func TestMachine_StartsInBootstrap(t *testing.T) {
	m := NewMachine(testThresholds())
	if m.Current() != StateBootstrap {
		t.Errorf("Current() = %v, want Bootstrap", m.Current())
	}
}

func TestMachine_BootstrapRecoveryAfterSustainedUnderfill(t *testing.T) {
	m := NewMachine(testThresholds())
	for i := 0; i < BootstrapRecoveryTriggerEpochs-1; i++ {
		if got := m.Evaluate(10, true); got != StateBootstrap {
			t.Fatalf("Evaluate() iteration %d = %v, want still Bootstrap", i, got)
		}
	}
	if got := m.Evaluate(10, true); got != StateBootstrapRecovery {
		t.Errorf("Evaluate() after %d underfilled epochs = %v, want BootstrapRecovery", BootstrapRecoveryTriggerEpochs, got)
	}
}

func TestMachine_BootstrapRecoveryClearsOnRefill(t *testing.T) {
	m := NewMachine(testThresholds())
	for i := 0; i < BootstrapRecoveryTriggerEpochs; i++ {
		m.Evaluate(10, true)
	}
	if m.Current() != StateBootstrapRecovery {
		t.Fatalf("setup: Current() = %v, want BootstrapRecovery", m.Current())
	}
	if got := m.Evaluate(60, true); got != StateBootstrap {
		t.Errorf("Evaluate() after refill = %v, want Bootstrap", got)
	}
}

func TestMachine_ExitsBootstrapEraImmediately(t *testing.T) {
	m := NewMachine(testThresholds())
	got := m.Evaluate(80, false)
	if got != StateNormal {
		t.Errorf("Evaluate(80, false) right after bootstrap = %v, want Normal (immediate classify)", got)
	}
}

func TestMachine_DownwardTransitionImmediate(t *testing.T) {
	m := NewMachine(testThresholds())
	m.Evaluate(80, false) // Normal
	got := m.Evaluate(60, false)
	if got != StateDegraded {
		t.Errorf("Evaluate(60) = %v, want Degraded immediately", got)
	}
}

func TestMachine_UpwardTransitionRequiresStabilityWindow(t *testing.T) {
	m := NewMachine(testThresholds())
	m.Evaluate(60, false) // lands on Degraded via bootstrap-exit immediate classify
	if m.Current() != StateDegraded {
		t.Fatalf("setup: Current() = %v, want Degraded", m.Current())
	}

	for i := 0; i < StabilityWindowEpochs-1; i++ {
		if got := m.Evaluate(80, false); got != StateDegraded {
			t.Fatalf("Evaluate() iteration %d = %v, want still Degraded (stability window not met)", i, got)
		}
	}
	if got := m.Evaluate(80, false); got != StateNormal {
		t.Errorf("Evaluate() after %d qualifying epochs = %v, want Normal", StabilityWindowEpochs, got)
	}
}

func TestMachine_UpwardStabilityResetsOnInterruption(t *testing.T) {
	m := NewMachine(testThresholds())
	m.Evaluate(60, false) // Degraded

	for i := 0; i < StabilityWindowEpochs/2; i++ {
		m.Evaluate(80, false)
	}
	// A qualifying-but-not-yet-committed run is interrupted by a downward blip.
	if got := m.Evaluate(10, false); got != StateEmergency {
		t.Fatalf("Evaluate(10) = %v, want immediate Emergency", got)
	}

	for i := 0; i < StabilityWindowEpochs-1; i++ {
		if got := m.Evaluate(80, false); got == StateNormal {
			t.Fatalf("Evaluate() reached Normal after only %d epochs post-interruption, want the window to have restarted", i+1)
		}
	}
}

func TestMachine_GovernanceTimelockMultiplier(t *testing.T) {
	m := NewMachine(testThresholds())
	m.Evaluate(60, false) // Degraded
	if got := m.GovernanceTimelockMultiplier(); got != 2 {
		t.Errorf("GovernanceTimelockMultiplier() in Degraded = %d, want 2", got)
	}

	m2 := NewMachine(testThresholds())
	m2.Evaluate(80, false) // Normal
	if got := m2.GovernanceTimelockMultiplier(); got != 1 {
		t.Errorf("GovernanceTimelockMultiplier() in Normal = %d, want 1", got)
	}
}

func TestEpochInBootstrapEra(t *testing.T) {
	if !EpochInBootstrapEra(types.EpochNumber(3), 10) {
		t.Error("EpochInBootstrapEra(3, 10) = false, want true")
	}
	if EpochInBootstrapEra(types.EpochNumber(10), 10) {
		t.Error("EpochInBootstrapEra(10, 10) = true, want false (exclusive upper bound)")
	}
}
