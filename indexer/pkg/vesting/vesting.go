// Package vesting reproduces the distributor program's vesting formulas.
//
// Unlocked amounts vest with a head start: a fixed fraction is claimable at
// start_ts and the remainder vests linearly until end_ts. Locked amounts vest
// linearly with no head start. Every operation is checked; intermediates are
// computed in 256 bits and must fit back into a u64.
package vesting

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
)

var (
	ErrArithmetic         = errors.New("vesting arithmetic overflow")
	ErrClaimingNotStarted = errors.New("claiming has not started")
)

// PctPrecision is the fixed-point denominator of HeadStart.
const PctPrecision = 1_000_000

// HeadStart is the fraction of the unlocked amount claimable at start_ts, in
// parts per million.
type HeadStart uint64

const DefaultHeadStart HeadStart = 500_000

// LockedVested returns how much of locked has vested at now.
func LockedVested(locked uint64, now, start, end int64) (uint64, error) {
	if now < start {
		return 0, nil
	}
	if now >= end {
		return locked, nil
	}
	elapsed, total, err := window(now, start, end)
	if err != nil {
		return 0, err
	}
	return mulDiv(locked, elapsed, total)
}

// UnlockedClaimed returns the unlocked amount a claim at now would receive.
// Claiming before start is an error; see ProjectedUnlocked for the clamped form.
func UnlockedClaimed(unlocked uint64, headStart HeadStart, now, start, end int64) (uint64, error) {
	if headStart > PctPrecision {
		return 0, ErrArithmetic
	}
	if now < start {
		return 0, ErrClaimingNotStarted
	}
	if now >= end {
		return unlocked, nil
	}
	elapsed, total, err := window(now, start, end)
	if err != nil {
		return 0, err
	}

	startAmount, err := mulDiv(unlocked, uint64(headStart), PctPrecision)
	if err != nil {
		return 0, err
	}
	bonus, err := mulDiv(unlocked-startAmount, elapsed, total)
	if err != nil {
		return 0, err
	}
	return checkedAdd(startAmount, bonus)
}

// ProjectedUnlocked is UnlockedClaimed for claimants without an on-chain
// record: before start it returns 0 instead of an error.
func ProjectedUnlocked(unlocked uint64, headStart HeadStart, now, start, end int64) (uint64, error) {
	if now < start {
		return 0, nil
	}
	return UnlockedClaimed(unlocked, headStart, now, start, end)
}

// Withdrawable returns the vested locked amount not yet withdrawn.
func Withdrawable(status account.ClaimStatus, now, start, end int64) (uint64, error) {
	vested, err := LockedVested(status.LockedAmount, now, start, end)
	if err != nil {
		return 0, err
	}
	return checkedSub(vested, status.LockedAmountWithdrawn)
}

// Forgone returns the unlocked amount given up when the claim was made.
func Forgone(status account.ClaimStatus) (uint64, error) {
	return checkedSub(status.UnlockedAmount, status.UnlockedAmountClaimed)
}

// window returns now-start and end-start, which are positive whenever
// start <= now < end.
func window(now, start, end int64) (uint64, uint64, error) {
	elapsed, ok := subInt64(now, start)
	if !ok || elapsed < 0 {
		return 0, 0, ErrArithmetic
	}
	total, ok := subInt64(end, start)
	if !ok || total <= 0 {
		return 0, 0, ErrArithmetic
	}
	return uint64(elapsed), uint64(total), nil
}

func subInt64(a, b int64) (int64, bool) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, false
	}
	return d, true
}

// mulDiv returns floor(a*b/c).
func mulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrArithmetic
	}
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow {
		return 0, ErrArithmetic
	}
	q := new(uint256.Int).Div(prod, uint256.NewInt(c))
	if !q.IsUint64() {
		return 0, ErrArithmetic
	}
	return q.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrArithmetic
	}
	return s, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmetic
	}
	return a - b, nil
}
