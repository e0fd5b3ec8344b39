// Package wallet implements the wallet-state oracle's tri-state
// tradeability judgment that the kimchi-premium detector consults before
// recommending a real cross-venue transfer. The per-venue deposit/withdraw
// flags themselves are cached in snapshot.Snapshot (PublishWallets,
// View.Wallet); this package keeps no cache of its own. Grounded on spec.md
// §4.4 and original_source/backend/app/connectors/deposit_status.py.
package wallet

import "arbwatch/models"

// Tradeable derives a tri-state verdict for whether a kimchi-premium
// opportunity is actually actionable. When Korea is richer, the buy leg
// sits on the foreign venue and the sell leg on the Korean venue, so
// tradeability requires withdraw(foreign) && deposit(korean). When the
// foreign venue is richer the trade direction inverts: the buy leg moves to
// the Korean venue and the sell leg to the foreign venue, so tradeability
// requires withdraw(korean) && deposit(foreign) instead. An unknown flag
// stays unknown in the returned status, and Overall turns it into an
// unknown verdict rather than false unless the other leg is known-false,
// since an unknown wallet status must not silently suppress a real
// opportunity.
func Tradeable(foreign, korean models.WalletState, foreignRicher bool) *models.WalletLegStatus {
	if foreignRicher {
		return &models.WalletLegStatus{
			Buy:  korean.WithdrawEnabled,
			Sell: foreign.DepositEnabled,
		}
	}
	return &models.WalletLegStatus{
		Buy:  foreign.WithdrawEnabled,
		Sell: korean.DepositEnabled,
	}
}

// Overall collapses a WalletLegStatus into a single tri-state verdict: true
// only if both legs are known-true, false if either leg is known-false,
// and unknown otherwise.
func Overall(status *models.WalletLegStatus) *bool {
	if status == nil {
		return nil
	}
	if status.Buy != nil && !*status.Buy {
		return models.False()
	}
	if status.Sell != nil && !*status.Sell {
		return models.False()
	}
	if status.Buy == nil || status.Sell == nil {
		return nil
	}
	if *status.Buy && *status.Sell {
		return models.True()
	}
	return models.False()
}
