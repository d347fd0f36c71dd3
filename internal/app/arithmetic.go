package app

import (
	"math/big"
	"math/bits"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

const bpsDenominator = 10_000

// feeOf returns the platform fee portion of a gross stake, rounded down.
// amount*bps cannot overflow thanks to the 128-bit intermediate.
func feeOf(amount uint64, bps uint32) uint64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	hi, lo := bits.Mul64(amount, uint64(bps))
	q, _ := bits.Div64(hi, lo, bpsDenominator)
	return q
}

func addU64Checked(a, b uint64, what string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errorsmod.Wrapf(ErrOverflow, "%s: %d + %d", what, a, b)
	}
	return sum, nil
}

func subU64Checked(a, b uint64, what string) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errorsmod.Wrapf(ErrOverflow, "%s: %d - %d", what, a, b)
	}
	return diff, nil
}

func addInt64AndU64Checked(a int64, b uint64, what string) (int64, error) {
	if b > uint64(1<<63-1) {
		return 0, errorsmod.Wrapf(ErrOverflow, "%s: %d + %d", what, a, b)
	}
	sum := a + int64(b)
	if sum < a {
		return 0, errorsmod.Wrapf(ErrOverflow, "%s: %d + %d", what, a, b)
	}
	return sum, nil
}

// payoutShare computes the exact pro-rata split validLiquidity*amount/winningPool
// with an arbitrary-precision intermediate, so no truncation bias beyond the
// final integer division. amount <= winningPool, hence the result fits u64.
func payoutShare(validLiquidity, amount, winningPool uint64) (uint64, error) {
	if winningPool == 0 {
		return 0, errorsmod.Wrap(ErrOverflow, "payout: zero winning pool")
	}
	share := sdkmath.NewIntFromUint64(validLiquidity).
		Mul(sdkmath.NewIntFromUint64(amount)).
		Quo(sdkmath.NewIntFromUint64(winningPool))
	if !share.IsUint64() {
		return 0, errorsmod.Wrapf(ErrOverflow, "payout: %s exceeds u64", share.String())
	}
	return share.Uint64(), nil
}

// randomOffset maps a 256-bit beacon value uniformly onto [0, window). The
// full value is reduced, not a truncation of it.
func randomOffset(randomness [32]byte, window int64) int64 {
	if window <= 0 {
		return 0
	}
	v := new(big.Int).SetBytes(randomness[:])
	return v.Mod(v, big.NewInt(window)).Int64()
}
