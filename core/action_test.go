package core

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypeText(t *testing.T) {
	for m := ActionDeposit; m <= ActionBatch; m++ {
		t.Run(m.String(), func(t *testing.T) {
			assert.True(t, m.Valid())
			text, err := m.MarshalText()
			require.NoError(t, err)

			var parsed ActionType
			require.NoError(t, parsed.UnmarshalText(text))
			assert.Equal(t, m, parsed)
		})
	}

	var m ActionType
	assert.ErrorIs(t, m.UnmarshalText([]byte("Teleport")), InvalidInstruction)
	assert.False(t, ActionType(0).Valid())
	assert.Equal(t, "Unknown", ActionType(200).String())
}

func TestInstructionJSON(t *testing.T) {
	var ix Instruction
	require.NoError(t, json.Unmarshal([]byte(`{"action":"Liquidate","amount":"1.5"}`), &ix))
	assert.Equal(t, ActionLiquidate, ix.Action)
	assert.True(t, ix.Amount.Equal(d("1.5")))
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
		code uint32
	}{
		{LendingAccountBalanceSlotsFull, KindCapacity, 6012},
		{BankPaused, KindStateViolation, 6030},
		{RiskEngineInitRejected, KindRiskRejection, 6050},
		{StaleOracle, KindOracleFailure, 6070},
		{IllegalFlashloan, KindFlashloanProtocolViolation, 6061},
		{ErrOptimalUr, KindConfigInvalid, 6002},
		{MathError, KindArithmetic, 6000},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			wrapped := errors.Wrap(tt.err, "context")
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}

	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
	assert.Equal(t, uint32(0), CodeOf(nil))
}
