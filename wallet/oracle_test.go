package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/models"
	"arbwatch/wallet"
)

func boolPtr(b bool) *bool { return &b }

func TestTradeableMapsWithdrawAndDepositWhenKoreaRicher(t *testing.T) {
	foreign := models.WalletState{Venue: "binance", Asset: "BTC", WithdrawEnabled: boolPtr(true)}
	korean := models.WalletState{Venue: "upbit", Asset: "BTC", DepositEnabled: boolPtr(true)}

	status := wallet.Tradeable(foreign, korean, false)
	require.NotNil(t, status)
	require.NotNil(t, status.Buy)
	require.NotNil(t, status.Sell)
	assert.True(t, *status.Buy)
	assert.True(t, *status.Sell)
}

func TestTradeableInvertsLegsWhenForeignRicher(t *testing.T) {
	foreign := models.WalletState{Venue: "binance", Asset: "BTC", DepositEnabled: boolPtr(true), WithdrawEnabled: boolPtr(false)}
	korean := models.WalletState{Venue: "upbit", Asset: "BTC", DepositEnabled: boolPtr(false), WithdrawEnabled: boolPtr(true)}

	status := wallet.Tradeable(foreign, korean, true)
	require.NotNil(t, status)
	require.NotNil(t, status.Buy)
	require.NotNil(t, status.Sell)
	assert.True(t, *status.Buy, "buy leg now sits on the Korean venue, so it should reflect korean.WithdrawEnabled")
	assert.True(t, *status.Sell, "sell leg now sits on the foreign venue, so it should reflect foreign.DepositEnabled")

	overall := wallet.Overall(status)
	require.NotNil(t, overall)
	assert.True(t, *overall)
}

func TestOverallTrueOnlyWhenBothLegsKnownTrue(t *testing.T) {
	status := &models.WalletLegStatus{Buy: boolPtr(true), Sell: boolPtr(true)}
	overall := wallet.Overall(status)
	require.NotNil(t, overall)
	assert.True(t, *overall)
}

func TestOverallFalseWhenEitherLegKnownFalse(t *testing.T) {
	falseWithdraw := &models.WalletLegStatus{Buy: boolPtr(false), Sell: boolPtr(true)}
	overall := wallet.Overall(falseWithdraw)
	require.NotNil(t, overall)
	assert.False(t, *overall)

	falseDeposit := &models.WalletLegStatus{Buy: boolPtr(true), Sell: boolPtr(false)}
	overall = wallet.Overall(falseDeposit)
	require.NotNil(t, overall)
	assert.False(t, *overall)
}

func TestOverallUnknownWhenEitherLegUnknown(t *testing.T) {
	unknownSell := &models.WalletLegStatus{Buy: boolPtr(true), Sell: nil}
	assert.Nil(t, wallet.Overall(unknownSell))

	bothUnknown := &models.WalletLegStatus{}
	assert.Nil(t, wallet.Overall(bothUnknown))
}

func TestOverallNilStatusIsUnknown(t *testing.T) {
	assert.Nil(t, wallet.Overall(nil))
}
