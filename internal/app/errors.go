package app

import errorsmod "cosmossdk.io/errors"

// Codespace groups this app's ABCI error codes.
const Codespace = "minoritybet"

// Sentinel errors. Everything fails closed with no state change; the only
// retryable condition is ErrWaitingForRandomness, which callers are expected
// to re-invoke after the beacon advances.
var (
	ErrInvalidRequest   = errorsmod.Register(Codespace, 1, "invalid request")
	ErrGameNotFound     = errorsmod.Register(Codespace, 2, "game not found")
	ErrWrongPhase       = errorsmod.Register(Codespace, 3, "wrong game phase")
	ErrActiveGameExists = errorsmod.Register(Codespace, 4, "an active game already exists")
	ErrPeriodNotEnded   = errorsmod.Register(Codespace, 5, "betting period not ended")
	ErrAlreadyResolved  = errorsmod.Register(Codespace, 6, "game already resolved")

	ErrWaitingForRandomness = errorsmod.Register(Codespace, 7, "randomness not yet available, retry later")

	ErrInvalidSide    = errorsmod.Register(Codespace, 8, "invalid side")
	ErrBetTooSmall    = errorsmod.Register(Codespace, 9, "bet below minimum")
	ErrBettingClosed  = errorsmod.Register(Codespace, 10, "betting window closed")
	ErrRosterFull     = errorsmod.Register(Codespace, 11, "bettor roster at capacity")
	ErrNoBet          = errorsmod.Register(Codespace, 12, "no bet for this side")
	ErrAlreadyClaimed = errorsmod.Register(Codespace, 13, "already claimed")

	ErrInsufficientGameBalance = errorsmod.Register(Codespace, 14, "game balance cannot cover payout")
	ErrInsufficientFeeReserve  = errorsmod.Register(Codespace, 15, "fee reserve cannot cover refund")

	ErrNotCompromised  = errorsmod.Register(Codespace, 16, "randomness integrity not compromised")
	ErrEmergencyLocked = errorsmod.Register(Codespace, 17, "emergency timeout not reached")

	ErrUnauthorized = errorsmod.Register(Codespace, 18, "unauthorized")
	ErrOverflow     = errorsmod.Register(Codespace, 19, "arithmetic overflow")
)
