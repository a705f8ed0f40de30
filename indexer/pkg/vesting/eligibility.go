package vesting

import (
	"fmt"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
)

// Claim is either Recorded or Projected.
type Claim interface {
	claim()
}

// Recorded is a claimant with an on-chain ClaimStatus.
type Recorded struct {
	Status account.ClaimStatus
}

// Projected is a claimant that has not claimed yet; amounts come from the
// tree leaf.
type Projected struct {
	Unlocked uint64
	Locked   uint64
}

func (Recorded) claim()  {}
func (Projected) claim() {}

// Schedule is a distributor's vesting window.
type Schedule struct {
	StartTs   int64
	EndTs     int64
	HeadStart HeadStart
}

// ScheduleFor returns the vesting window of d.
func ScheduleFor(d account.Distributor, headStart HeadStart) Schedule {
	return Schedule{StartTs: d.StartTs, EndTs: d.EndTs, HeadStart: headStart}
}

// Eligibility is what a claimant can do at a point in time.
type Eligibility struct {
	HasRecord          bool   `json:"has_record"`
	UnlockedAmount     uint64 `json:"unlocked_amount"`
	LockedAmount       uint64 `json:"locked_amount"`
	UnlockedClaimable  uint64 `json:"unlocked_claimable"`
	UnlockedClaimed    uint64 `json:"unlocked_claimed"`
	UnlockedForgone    uint64 `json:"unlocked_forgone"`
	LockedVested       uint64 `json:"locked_vested"`
	LockedWithdrawn    uint64 `json:"locked_withdrawn"`
	LockedWithdrawable uint64 `json:"locked_withdrawable"`
	TotalClaimable     uint64 `json:"total_claimable"`
}

// Compute evaluates claim against schedule at now.
//
// A recorded claimant has already taken its unlocked share, so only the
// locked side is withdrawable. A projected claimant could claim the head
// start plus vested bonus now and forgo the rest.
func Compute(c Claim, s Schedule, now int64) (Eligibility, error) {
	switch c := c.(type) {
	case Recorded:
		return computeRecorded(c.Status, s, now)
	case Projected:
		return computeProjected(c, s, now)
	default:
		return Eligibility{}, fmt.Errorf("vesting: unsupported claim type %T", c)
	}
}

func computeRecorded(st account.ClaimStatus, s Schedule, now int64) (Eligibility, error) {
	forgone, err := Forgone(st)
	if err != nil {
		return Eligibility{}, err
	}
	vested, err := LockedVested(st.LockedAmount, now, s.StartTs, s.EndTs)
	if err != nil {
		return Eligibility{}, err
	}
	withdrawable, err := checkedSub(vested, st.LockedAmountWithdrawn)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		HasRecord:          true,
		UnlockedAmount:     st.UnlockedAmount,
		LockedAmount:       st.LockedAmount,
		UnlockedClaimed:    st.UnlockedAmountClaimed,
		UnlockedForgone:    forgone,
		LockedVested:       vested,
		LockedWithdrawn:    st.LockedAmountWithdrawn,
		LockedWithdrawable: withdrawable,
		TotalClaimable:     withdrawable,
	}, nil
}

func computeProjected(p Projected, s Schedule, now int64) (Eligibility, error) {
	claimable, err := ProjectedUnlocked(p.Unlocked, s.HeadStart, now, s.StartTs, s.EndTs)
	if err != nil {
		return Eligibility{}, err
	}
	var forgone uint64
	if now >= s.StartTs {
		if forgone, err = checkedSub(p.Unlocked, claimable); err != nil {
			return Eligibility{}, err
		}
	}
	vested, err := LockedVested(p.Locked, now, s.StartTs, s.EndTs)
	if err != nil {
		return Eligibility{}, err
	}
	total, err := checkedAdd(claimable, vested)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		UnlockedAmount:     p.Unlocked,
		LockedAmount:       p.Locked,
		UnlockedClaimable:  claimable,
		UnlockedForgone:    forgone,
		LockedVested:       vested,
		LockedWithdrawable: vested,
		TotalClaimable:     total,
	}, nil
}
