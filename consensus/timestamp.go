package consensus

import "github.com/kratoschain/kratos/core/types"

// Timestamp validation parameters (§4.9).
const (
	MaxFutureDriftSeconds  = 15
	MinActualIntervalSec   = 5
	MaxDriftSeconds        = 6
	RestartGraceDriftSec   = 3600
	HealthyToDegradedBad   = 1 // any single bad block
	DegradedToHealthyGood  = 3
	RecoveringToHealthyOK  = 5
	ExcludedRecoveryProbe  = 1
)

// ValidateTimestamp checks one block header's timestamp against its parent
// and the local wall clock, per the incremental-drift model: reject if
// timestamp <= parent timestamp, timestamp is more than 15s in the future,
// the actual slot interval is under 5s, or the drift from the expected
// slot-aligned timestamp exceeds 6s. Grounded on the teacher's
// header_validator.go timestamp-monotonicity and future-drift checks,
// generalized with the slot-interval and expected-drift bounds the
// component design adds.
func ValidateTimestamp(parentTimestamp, timestamp, now uint64, secondsPerSlot uint64, graceExemption bool) error {
	if timestamp <= parentTimestamp {
		return ErrTimestampNotMonotonic
	}
	if !graceExemption && timestamp > now+MaxFutureDriftSeconds {
		return ErrTimestampTooFarInFuture
	}
	if graceExemption && timestamp > now+RestartGraceDriftSec {
		return ErrTimestampTooFarInFuture
	}

	actualInterval := timestamp - parentTimestamp
	if actualInterval < MinActualIntervalSec {
		return ErrIntervalTooShort
	}

	expected := parentTimestamp + secondsPerSlot
	var drift int64
	if timestamp >= expected {
		drift = int64(timestamp - expected)
	} else {
		drift = -int64(expected - timestamp)
	}
	if drift > MaxDriftSeconds || drift < -MaxDriftSeconds {
		return ErrDriftExceeded
	}
	return nil
}

// AdvanceClockHealth applies one block's timestamp-validation outcome to a
// validator's clock-health state machine:
// Healthy -> Degraded on any bad block; Degraded -> Healthy after 3
// consecutive good blocks, or -> Excluded on another bad block; Excluded
// stays until a Recovering probe succeeds; Recovering -> Healthy after 5
// consecutive good blocks, or back to Excluded on any bad block.
func AdvanceClockHealth(current types.ClockHealthState, goodBlock bool, consecutiveGood int) (types.ClockHealthState, int) {
	switch current {
	case types.ClockHealthy:
		if !goodBlock {
			return types.ClockDegraded, 0
		}
		return types.ClockHealthy, 0
	case types.ClockDegraded:
		if !goodBlock {
			return types.ClockExcluded, 0
		}
		consecutiveGood++
		if consecutiveGood >= DegradedToHealthyGood {
			return types.ClockHealthy, 0
		}
		return types.ClockDegraded, consecutiveGood
	case types.ClockExcluded:
		if goodBlock {
			return types.ClockRecovering, 1
		}
		return types.ClockExcluded, 0
	case types.ClockRecovering:
		if !goodBlock {
			return types.ClockExcluded, 0
		}
		consecutiveGood++
		if consecutiveGood >= RecoveringToHealthyOK {
			return types.ClockHealthy, 0
		}
		return types.ClockRecovering, consecutiveGood
	default:
		return types.ClockHealthy, 0
	}
}
