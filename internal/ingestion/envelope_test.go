package ingestion

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"round-indexer/internal/domain"
)

func TestEnvelope_DecodeInvestmentMade(t *testing.T) {
	env := &Envelope{
		Kind:           "InvestmentMade",
		Address:        "0x00000000000000000000000000000000000000aa",
		BlockTimestamp: 1700000000,
		TxHash:         "0xabc",
		LogIndex:       3,
		Payload:        json.RawMessage(`{"investor":"0xb0","usdcAmount":"500","tokensReceived":"50","totalRaised":"1500"}`),
	}

	ev, err := env.Decode()
	require.NoError(t, err)

	inv, ok := ev.(*domain.InvestmentMade)
	require.True(t, ok)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", inv.RoundAddress())
	assert.Equal(t, "0xabc-3", inv.LedgerID())
	assert.Equal(t, big.NewInt(500), inv.USDCAmount)
	assert.Equal(t, big.NewInt(50), inv.TokensReceived)
	assert.Equal(t, big.NewInt(1500), inv.TotalRaised)
}

func TestEnvelope_EncodeDecodeRoundTrip(t *testing.T) {
	original := &domain.RoundCreated{
		EventMeta: domain.EventMeta{
			Address:        "0x00000000000000000000000000000000000000aa",
			BlockTimestamp: 1700000000,
			TxHash:         "0xabc",
			LogIndex:       0,
		},
		Founder:          "0xf0",
		EquityToken:      "0xe0",
		CompanyName:      "Acme Robotics",
		TargetRaise:      big.NewInt(1_000_000),
		EquityPercentage: 1500,
	}

	env, err := Encode(original)
	require.NoError(t, err)
	assert.Equal(t, "RoundCreated", env.Kind)

	decoded, err := env.Decode()
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEnvelope_DecodeUnknownKind(t *testing.T) {
	env := &Envelope{
		Kind:    "SomethingElse",
		Payload: json.RawMessage(`{}`),
	}

	_, err := env.Decode()
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEnvelope_DecodeInvalidAmount(t *testing.T) {
	env := &Envelope{
		Kind:    "InvestmentMade",
		Payload: json.RawMessage(`{"investor":"0xb0","usdcAmount":"not-a-number"}`),
	}

	_, err := env.Decode()
	assert.Error(t, err)
}

func TestEnvelope_DecodeEmptyAmountsAsZero(t *testing.T) {
	env := &Envelope{
		Kind:    "PlatformFeeCollected",
		Payload: json.RawMessage(`{}`),
	}

	ev, err := env.Decode()
	require.NoError(t, err)

	fee, ok := ev.(*domain.PlatformFeeCollected)
	require.True(t, ok)
	assert.Zero(t, fee.FeeAmount.Sign())
}

func TestArchivedRoundTrip(t *testing.T) {
	original := &domain.YieldDistributed{
		EventMeta: domain.EventMeta{
			Address:        "0x00000000000000000000000000000000000000aa",
			BlockTimestamp: 1700000000,
			TxHash:         "0xdef",
			LogIndex:       7,
		},
		TotalYield:    big.NewInt(100),
		FounderYield:  big.NewInt(40),
		InvestorYield: big.NewInt(60),
	}

	row, err := ToArchived(original, 1700000100)
	require.NoError(t, err)
	assert.Equal(t, "YieldDistributed", row.Kind)
	assert.Equal(t, int64(1700000100), row.ReceivedAt)

	decoded, err := DecodeArchived(row)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestArchivedBigAmountsSurvive(t *testing.T) {
	// 2^200 overflows every machine word; the decimal-string wire form
	// must carry it untouched.
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	original := &domain.InvestmentMade{
		EventMeta: domain.EventMeta{
			Address:        "0x00000000000000000000000000000000000000aa",
			BlockTimestamp: 1700000000,
			TxHash:         "0xabc",
			LogIndex:       0,
		},
		Investor:       "0xb0",
		USDCAmount:     huge,
		TokensReceived: big.NewInt(1),
		TotalRaised:    huge,
	}

	row, err := ToArchived(original, 1700000100)
	require.NoError(t, err)

	decoded, err := DecodeArchived(row)
	require.NoError(t, err)

	inv := decoded.(*domain.InvestmentMade)
	assert.Zero(t, huge.Cmp(inv.USDCAmount))
	assert.Zero(t, huge.Cmp(inv.TotalRaised))
}
