package consensus

import "testing"

func TestDefaultConfig_Validates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestQuickTestConfig_Validates(t *testing.T) {
	if err := QuickTestConfig().Validate(); err != nil {
		t.Errorf("QuickTestConfig().Validate() = %v, want nil", err)
	}
}

func TestConfig_Validate_RejectsZeroSecondsPerSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecondsPerSlot = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with SecondsPerSlot=0 = nil, want error")
	}
}

func TestConfig_Validate_RejectsZeroSlotsPerEpoch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlotsPerEpoch = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with SlotsPerEpoch=0 = nil, want error")
	}
}

func TestConfig_Validate_RejectsNonPositiveMinValidators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinValidatorsForFinality = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with MinValidatorsForFinality=0 = nil, want error")
	}
}

func TestConfig_Validate_RejectsNonIncreasingThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegradedThreshold = cfg.NormalThreshold
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with Degraded==Normal threshold = nil, want error")
	}
}

func TestConfig_EpochDuration(t *testing.T) {
	cfg := DefaultConfig()
	want := cfg.SecondsPerSlot * cfg.SlotsPerEpoch
	if got := cfg.EpochDuration(); got != want {
		t.Errorf("EpochDuration() = %d, want %d", got, want)
	}
}
