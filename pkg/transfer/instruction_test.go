package transfer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForObligation_Native(t *testing.T) {
	ob := schedule.Obligation{
		ID:        4,
		Recipient: "payee0002",
		Asset:     schedule.NewNativeAsset("uatom", 125),
	}

	inst := transfer.ForObligation(ob, ob.Recipient)
	assert.Equal(t, transfer.KindNative, inst.Kind)
	assert.Equal(t, "payee0002", inst.Recipient)
	assert.Equal(t, "uatom", inst.Denom)
	assert.Empty(t, inst.Contract)
	assert.Equal(t, int64(125), inst.Amount)
	assert.Equal(t, uint64(4), inst.ObligationID)
	assert.NotEmpty(t, inst.InstructionID)
}

func TestForObligation_Token(t *testing.T) {
	ob := schedule.Obligation{
		ID:        9,
		Recipient: "payee0003",
		Asset:     schedule.NewTokenAsset("token1", 50),
	}

	inst := transfer.ForObligation(ob, ob.Recipient)
	assert.Equal(t, transfer.KindToken, inst.Kind)
	assert.Equal(t, "token1", inst.Contract)
	assert.Empty(t, inst.Denom)
}

func TestForObligation_RefundDestinationOverridesRecipient(t *testing.T) {
	ob := schedule.Obligation{
		ID:        2,
		Recipient: "payee0002",
		Asset:     schedule.NewNativeAsset("u", 3),
	}

	inst := transfer.ForObligation(ob, "owner0001")
	assert.Equal(t, "owner0001", inst.Recipient)
	assert.Equal(t, int64(3), inst.Amount)
}

func TestForObligation_UniqueInstructionIDs(t *testing.T) {
	ob := schedule.Obligation{ID: 1, Recipient: "a", Asset: schedule.NewNativeAsset("u", 1)}

	a := transfer.ForObligation(ob, "a")
	b := transfer.ForObligation(ob, "a")
	assert.NotEqual(t, a.InstructionID, b.InstructionID)
}

func TestRecorder_RecordsAndFails(t *testing.T) {
	rec := transfer.NewRecorder()
	ctx := context.Background()

	batch := []transfer.Instruction{
		{InstructionID: "i1", ObligationID: 1, Kind: transfer.KindNative, Recipient: "a", Denom: "u", Amount: 1},
		{InstructionID: "i2", ObligationID: 2, Kind: transfer.KindToken, Recipient: "b", Contract: "token1", Amount: 2},
	}
	require.NoError(t, rec.Execute(ctx, batch))
	assert.Len(t, rec.Executed(), 2)

	boom := errors.New("downstream rejected transfer")
	rec.FailWith(boom)
	err := rec.Execute(ctx, batch[:1])
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Executed(), 3, "instructions are recorded even when the executor reports failure")
}
