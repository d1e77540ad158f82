package referral

import "errors"

// Domain errors. Each precondition of the application engine and the
// lifecycle manager fails with a distinct kind so the API layer can map
// them to precise responses.
var (
	// ErrInvalidFormat reports a code that does not match HB-XXXXXXXX
	ErrInvalidFormat = errors.New("referral code format is invalid")

	// ErrCodeNotFound reports a code that does not exist or is inactive
	ErrCodeNotFound = errors.New("referral code not found")

	// ErrReferrerMissing reports a code whose owner no longer exists
	ErrReferrerMissing = errors.New("referrer account no longer exists")

	// ErrAlreadyReferred reports an email that already has a referral row,
	// in any status
	ErrAlreadyReferred = errors.New("email has already been referred")

	// ErrSelfReferral reports a user redeeming their own code
	ErrSelfReferral = errors.New("cannot redeem your own referral code")

	// ErrNotFoundOrCompleted reports a complete() call on a referral that
	// does not exist or is no longer pending
	ErrNotFoundOrCompleted = errors.New("referral not found or already completed")

	// ErrExpired reports a complete() call on a referral past its validity
	ErrExpired = errors.New("referral has expired")
)
