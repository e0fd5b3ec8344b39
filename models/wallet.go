package models

// WalletState carries tri-state deposit/withdraw availability for
// (venue, asset). A nil pointer means "unknown"; unknown must never be
// treated as false by a caller.
type WalletState struct {
	Venue           string
	Asset           string
	DepositEnabled  *bool
	WithdrawEnabled *bool
}

func boolPtr(b bool) *bool { return &b }

// TriBool renders a tri-state pointer for wire encoding: true/false/nil.
type TriBool = *bool

// True and False are convenience constructors for tri-state wallet flags.
func True() TriBool  { return boolPtr(true) }
func False() TriBool { return boolPtr(false) }
