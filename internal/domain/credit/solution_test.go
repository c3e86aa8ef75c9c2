package credit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreditSolution_Validation(t *testing.T) {
	creditID := uuid.New()

	tests := []struct {
		name     string
		quantity int
		payload  Payload
		wantCode string
	}{
		{"zero quantity", 0, WriteOffPayload{Reason: "lost"}, shared.CodeValidation},
		{"negative quantity", -3, WriteOffPayload{Reason: "lost"}, shared.CodeValidation},
		{"write-off without reason", 1, WriteOffPayload{}, shared.CodeValidation},
		{"sale without document", 1, SalePayload{UnitPrice: decimal.NewFromInt(10)}, shared.CodeValidation},
		{"sale with negative price", 1, SalePayload{SaleDocumentNumber: "S-1", UnitPrice: decimal.NewFromInt(-1)}, shared.CodeValidation},
		{"recovery without date", 1, RecoveryPayload{Location: "dock 3"}, shared.CodeValidation},
		{"substitution without destination", 1, SubstitutionPayload{Reason: "x"}, shared.CodeValidation},
		{"substitution without reason", 1, SubstitutionPayload{DestinationCreditID: uuid.New()}, shared.CodeValidation},
		{"substitution into itself", 1, SubstitutionPayload{DestinationCreditID: creditID, Reason: "x"}, shared.CodeValidation},
		{"missing payload", 1, nil, shared.CodeValidation},
		{"valid recovery", 4, RecoveryPayload{RecoveredAt: time.Now()}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := NewCreditSolution(creditID, tt.quantity, tt.payload, "operator")
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.payload.Kind(), sol.Kind)
				return
			}
			assert.Nil(t, sol)
			assert.Equal(t, tt.wantCode, shared.CodeOf(err))
		})
	}
}

func TestCreditSolution_SaleValue(t *testing.T) {
	sol, err := NewCreditSolution(uuid.New(), 12, SalePayload{
		SaleDocumentNumber: "S-77",
		SaleDate:           time.Now(),
		UnitPrice:          decimal.RequireFromString("35.50"),
		BuyerName:          "Buyer",
	}, "operator")
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("426").Equal(sol.SaleValue()))

	wo, err := NewCreditSolution(uuid.New(), 1, WriteOffPayload{Reason: "x"}, "operator")
	require.NoError(t, err)
	assert.True(t, wo.SaleValue().IsZero())
}

func TestPayloadEncoding(t *testing.T) {
	dest := uuid.New()
	payloads := []Payload{
		WriteOffPayload{Reason: "damaged", CustomerConfirmed: true},
		SalePayload{SaleDocumentNumber: "S-1", SaleDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), UnitPrice: decimal.NewFromInt(30)},
		RecoveryPayload{RecoveredAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Location: "CD Campinas", DeliveredBy: "driver"},
		SubstitutionPayload{DestinationCreditID: dest, Reason: "carrier change", NewDocumentNumber: "555"},
	}

	for _, p := range payloads {
		t.Run(string(p.Kind()), func(t *testing.T) {
			data, err := EncodePayload(p)
			require.NoError(t, err)

			decoded, err := DecodePayload(p.Kind(), data)
			require.NoError(t, err)
			assert.Equal(t, p.Kind(), decoded.Kind())
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		_, err := DecodePayload("BARTER", []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("substitution keeps its destination", func(t *testing.T) {
		data, err := EncodePayload(SubstitutionPayload{DestinationCreditID: dest, Reason: "r"})
		require.NoError(t, err)
		decoded, err := DecodePayload(SolutionSubstitution, data)
		require.NoError(t, err)
		assert.Equal(t, dest, decoded.(SubstitutionPayload).DestinationCreditID)
	})
}
