package consensus

import (
	"math/big"

	"github.com/kratoschain/kratos/core/types"
)

// Fee-split basis points, normatively fixed by spec.md §4.6 (and restated
// in §9's "open questions" as the resolution of the 60/30/10 vs 50/10/30/10
// ambiguity across revisions): 50% to the block producer, 10% split equally
// among the precommit signers of the most recently produced finality
// justification, 30% burned, 10% to the treasury account. When no finality
// voters exist yet (very early blocks, solo bootstrap), the 10% voter share
// folds into the treasury instead, per §4.6's own fallback rule.
const (
	FeeProducerBps = 5000
	FeeVoterBps    = 1000
	FeeBurnBps     = 3000
	FeeTreasuryBps = 1000
)

// FeeSplit is the computed distribution of one block's total collected fee.
type FeeSplit struct {
	Producer types.Balance
	Burned   types.Balance
	Treasury types.Balance
	PerVoter map[types.AccountID]types.Balance
}

// SplitFees divides totalFee according to FeeProducerBps/FeeVoterBps/
// FeeBurnBps/FeeTreasuryBps. voters is the precommit-signer list of the
// most recently produced finality justification; when empty, the voter
// share accrues to the treasury instead of being distributed. Any
// remainder left by integer division (the treasury's own bps share, plus
// any dust from splitting the voter pool equally) also accrues to the
// treasury, so the four buckets always sum to exactly totalFee.
func SplitFees(totalFee types.Balance, voters []types.AccountID) FeeSplit {
	producer := totalFee.MulBasisPoints(FeeProducerBps)
	burned := totalFee.MulBasisPoints(FeeBurnBps)
	voterPool := totalFee.MulBasisPoints(FeeVoterBps)

	spent, _ := producer.Add(burned)
	spent, _ = spent.Add(voterPool)
	treasury, err := totalFee.Sub(spent)
	if err != nil {
		treasury = types.ZeroBalance()
	}

	perVoter := make(map[types.AccountID]types.Balance, len(voters))
	if len(voters) == 0 {
		// No finality voters yet: the 10% voter share falls to treasury.
		if sum, err := treasury.Add(voterPool); err == nil {
			treasury = sum
		}
		return FeeSplit{Producer: producer, Burned: burned, Treasury: treasury, PerVoter: perVoter}
	}

	share := new(big.Int).Div(voterPool.Big(), big.NewInt(int64(len(voters))))
	equalShare, err := types.BalanceFromBig(share)
	if err != nil {
		equalShare = types.ZeroBalance()
	}

	var distributed types.Balance = types.ZeroBalance()
	for _, voter := range voters {
		perVoter[voter] = equalShare
		if sum, err := distributed.Add(equalShare); err == nil {
			distributed = sum
		}
	}
	// Rounding dust from the equal split folds into the treasury, same as
	// the fee-split remainder above, so the whole block's fee is conserved.
	if dust, err := voterPool.Sub(distributed); err == nil && !dust.IsZero() {
		if sum, err := treasury.Add(dust); err == nil {
			treasury = sum
		}
	}

	return FeeSplit{Producer: producer, Burned: burned, Treasury: treasury, PerVoter: perVoter}
}
