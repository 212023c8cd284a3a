// Package security implements the chain-wide security-state machine driven
// by the active validator count: Bootstrap/Normal/Degraded/Restricted/
// Emergency, plus the BootstrapRecovery sub-state. Downward transitions are
// immediate on the triggering block; upward transitions require a stability
// window of consecutive qualifying epochs, so the chain doesn't flap across
// a threshold boundary. No direct teacher analog exists (the teacher's
// beacon chain has no comparable validator-count-driven mode machine); this
// package is new, derived from the component design (§4.13), structured as
// an explicit state-machine type in the same style as the teacher's
// phase_timer.go round-phase transitions.
package security

import "github.com/kratoschain/kratos/core/types"

// State is one of the six named security states.
type State uint8

const (
	StateBootstrap State = iota
	StateNormal
	StateDegraded
	StateRestricted
	StateEmergency
	StateBootstrapRecovery
)

func (s State) String() string {
	switch s {
	case StateBootstrap:
		return "bootstrap"
	case StateNormal:
		return "normal"
	case StateDegraded:
		return "degraded"
	case StateRestricted:
		return "restricted"
	case StateEmergency:
		return "emergency"
	case StateBootstrapRecovery:
		return "bootstrap_recovery"
	default:
		return "unknown"
	}
}

// Thresholds for active-validator count, matching consensus.Config's
// NormalThreshold/DegradedThreshold/RestrictedThreshold fields.
type Thresholds struct {
	Normal     int // >= this many active validators: Normal
	Degraded   int // >= this many: Degraded
	Restricted int // >= this many: Restricted; below this: Emergency
}

// StabilityWindowEpochs is how many consecutive qualifying epochs are
// required before an upward transition (e.g. Degraded -> Normal) commits.
const StabilityWindowEpochs = 100

// BootstrapRecoveryTriggerEpochs is how many consecutive epochs with fewer
// than 50 active validators during the bootstrap era trigger
// BootstrapRecovery.
const BootstrapRecoveryTriggerEpochs = 10

// Machine tracks the chain's current security state and the consecutive-
// epoch counters needed to gate upward transitions.
type Machine struct {
	thresholds Thresholds

	current State

	// consecutiveQualifying counts how many epochs in a row the active
	// count has qualified for a state strictly better than current.
	consecutiveQualifying int
	consecutiveUnderfilled int // for BootstrapRecovery tracking
}

// NewMachine starts in Bootstrap, the state every chain begins in.
func NewMachine(t Thresholds) *Machine {
	return &Machine{thresholds: t, current: StateBootstrap}
}

func (m *Machine) Current() State { return m.current }

// Evaluate recomputes the state for one epoch boundary given the current
// active validator count and whether the chain is still within the
// bootstrap era. Downward moves (toward worse availability) always apply
// immediately; upward moves require StabilityWindowEpochs of sustained
// qualification first.
func (m *Machine) Evaluate(activeCount int, inBootstrapEra bool) State {
	if inBootstrapEra {
		return m.evaluateBootstrap(activeCount)
	}
	if m.current == StateBootstrap || m.current == StateBootstrapRecovery {
		m.current = m.classify(activeCount)
		m.consecutiveQualifying = 0
		return m.current
	}

	target := m.classify(activeCount)
	if rank(target) <= rank(m.current) {
		// Downward or lateral: commit immediately.
		m.current = target
		m.consecutiveQualifying = 0
		return m.current
	}

	// Upward: require a stability window before committing.
	if target == m.current {
		m.consecutiveQualifying = 0
		return m.current
	}
	m.consecutiveQualifying++
	if m.consecutiveQualifying >= StabilityWindowEpochs {
		m.current = target
		m.consecutiveQualifying = 0
	}
	return m.current
}

func (m *Machine) evaluateBootstrap(activeCount int) State {
	if activeCount < 50 {
		m.consecutiveUnderfilled++
	} else {
		m.consecutiveUnderfilled = 0
	}
	if m.consecutiveUnderfilled >= BootstrapRecoveryTriggerEpochs {
		m.current = StateBootstrapRecovery
	} else {
		m.current = StateBootstrap
	}
	return m.current
}

func (m *Machine) classify(activeCount int) State {
	switch {
	case activeCount >= m.thresholds.Normal:
		return StateNormal
	case activeCount >= m.thresholds.Degraded:
		return StateDegraded
	case activeCount >= m.thresholds.Restricted:
		return StateRestricted
	default:
		return StateEmergency
	}
}

// rank orders states from best (Normal) to worst (Emergency) for comparing
// transition direction; Bootstrap/BootstrapRecovery are handled separately
// and never compared via rank.
func rank(s State) int {
	switch s {
	case StateNormal:
		return 3
	case StateDegraded:
		return 2
	case StateRestricted:
		return 1
	case StateEmergency:
		return 0
	default:
		return -1
	}
}

// GovernanceTimelockMultiplier returns the multiplier applied to standard
// governance timelocks while in Degraded (2x, per §4.14); 1x otherwise.
func (m *Machine) GovernanceTimelockMultiplier() uint64 {
	if m.current == StateDegraded {
		return 2
	}
	return 1
}

// EpochInBootstrapEra reports whether epoch falls within the bootstrap era
// for the given config length.
func EpochInBootstrapEra(epoch types.EpochNumber, bootstrapEpochs uint64) bool {
	return uint64(epoch) < bootstrapEpochs
}
