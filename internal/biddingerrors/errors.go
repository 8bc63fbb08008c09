package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrNotFound        = errors.New("not found")
	ErrAuctionNotFound = fmt.Errorf("auction %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrNoBids          = errors.New("no bids found for auction")
	ErrUserNoBids      = errors.New("user has not placed any bids")
	ErrStorage         = errors.New("storage failure")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAmount  = errors.New("invalid bid amount")
	ErrInvalidState   = errors.New("auction is not in the required state")
	ErrSelfBid        = errors.New("owner cannot bid on own auction")
	ErrForbidden      = errors.New("operation not permitted for user")
	ErrInvalidAuction = errors.New("invalid auction")
)

// ErrConflict reports that the auction's exclusion scope could not be acquired in time.
// It is transient and callers may retry.
var ErrConflict = errors.New("auction is busy, retry later")
