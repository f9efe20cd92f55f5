package domain

import "errors"

// Kind classifies an error for retry and surfacing decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a bad request: bet size, wrong market, closed window.
	KindValidation
	// KindPrecondition means the market is not in the state the call needs.
	KindPrecondition
	// KindTransient covers oracle and RPC failures that a later retry may clear.
	KindTransient
	// KindInvariant aborts the operation; the stored state is inconsistent.
	KindInvariant
	// KindUser is a wallet-side problem shown to the account holder verbatim.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindTransient:
		return "transient"
	case KindInvariant:
		return "invariant"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrContextDone  = errors.New("context cancelled")
	ErrLockHeld     = errors.New("lock held by another process")
	ErrUnauthorized = newError(KindPrecondition, "caller is not the settlement agent")

	ErrNoMarket                 = newError(KindPrecondition, "no market exists")
	ErrWrongMarket              = newError(KindValidation, "market is not the current market")
	ErrInvalidSide              = newError(KindValidation, "invalid side")
	ErrInvalidPrice             = newError(KindValidation, "price must be positive")
	ErrInvalidAmount            = newError(KindValidation, "amount must be positive")
	ErrInvalidAccount           = newError(KindValidation, "invalid account address")
	ErrBetTooSmall              = newError(KindValidation, "bet below minimum")
	ErrBetTooLarge              = newError(KindValidation, "bet above maximum")
	ErrMarketBetLimitReached    = newError(KindValidation, "market bet limit reached")
	ErrBettingWindowClosed      = newError(KindValidation, "betting window closed")
	ErrMarketNotEnded           = newError(KindPrecondition, "market has not ended")
	ErrAlreadySettled           = newError(KindPrecondition, "market already settled")
	ErrPreviousMarketNotSettled = newError(KindPrecondition, "previous market not settled")
	ErrMarketNotSettled         = newError(KindPrecondition, "market not settled")
	ErrAlreadyClaimed           = newError(KindPrecondition, "winnings already claimed")
	ErrNothingToClaim           = newError(KindPrecondition, "nothing to claim")

	ErrOracleUnavailable = newError(KindTransient, "price oracle unavailable")
	ErrRPCTimeout        = newError(KindTransient, "rpc timeout")
	ErrTxReverted        = newError(KindTransient, "transaction reverted")

	ErrInvariantViolation = newError(KindInvariant, "payout invariant violated")

	ErrInsufficientAllowance = newError(KindUser, "insufficient allowance")
	ErrInsufficientBalance   = newError(KindUser, "insufficient balance")
	ErrApprovalFailed        = newError(KindUser, "token approval failed")
)

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
