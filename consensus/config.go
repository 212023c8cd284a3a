// Package consensus implements the Kratos proof-of-stake consensus core:
// the validator set and Validator Credits, VRF-weighted slot-leader
// selection, graded slashing, the security-state machine, and the
// bootstrap era's early-validator admission protocol. The finality gadget
// lives in the sibling consensus/finality package.
package consensus

import "fmt"

// Config holds the fixed protocol parameters. Grounded on the teacher's
// ConsensusConfig + named preset constructors (consensus/config.go),
// generalized from beacon-chain slot timing to the stake/VC model.
type Config struct {
	SecondsPerSlot uint64
	SlotsPerEpoch  uint64

	// BootstrapEpochs is the length of the bootstrap era (epoch < this
	// value): fixed inflation, 2x VC multipliers, simplified admission.
	BootstrapEpochs uint64

	StakeCapKrat             uint64
	MinEffectiveVC           uint64
	BootstrapMinVC           uint64
	MinValidatorsForFinality int

	// Security-state thresholds (§4.13).
	NormalThreshold     int
	DegradedThreshold   int
	RestrictedThreshold int

	ChainID uint64
}

// DefaultConfig returns the normative Kratos mainnet parameters: 6s slots,
// 600 slots/epoch (≈1h), a 1440-epoch bootstrap era.
func DefaultConfig() Config {
	return Config{
		SecondsPerSlot:           6,
		SlotsPerEpoch:            600,
		BootstrapEpochs:          1440,
		StakeCapKrat:             1_000_000,
		MinEffectiveVC:           1,
		BootstrapMinVC:           100,
		MinValidatorsForFinality: 3,
		NormalThreshold:          75,
		DegradedThreshold:        50,
		RestrictedThreshold:      25,
		ChainID:                  1,
	}
}

// QuickTestConfig shortens slot/epoch lengths for integration tests that
// need to cross epoch boundaries without waiting on wall-clock time.
func QuickTestConfig() Config {
	cfg := DefaultConfig()
	cfg.SecondsPerSlot = 1
	cfg.SlotsPerEpoch = 8
	cfg.BootstrapEpochs = 4
	return cfg
}

func (c Config) Validate() error {
	if c.SecondsPerSlot == 0 {
		return fmt.Errorf("consensus: SecondsPerSlot must be > 0")
	}
	if c.SlotsPerEpoch == 0 {
		return fmt.Errorf("consensus: SlotsPerEpoch must be > 0")
	}
	if c.MinValidatorsForFinality <= 0 {
		return fmt.Errorf("consensus: MinValidatorsForFinality must be > 0")
	}
	if !(c.RestrictedThreshold < c.DegradedThreshold && c.DegradedThreshold < c.NormalThreshold) {
		return fmt.Errorf("consensus: security-state thresholds must be strictly increasing")
	}
	return nil
}

func (c Config) EpochDuration() uint64 { return c.SecondsPerSlot * c.SlotsPerEpoch }
