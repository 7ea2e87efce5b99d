// Package transfer defines the outbound value-movement directives the engine
// emits and the executor contract that carries them out. The engine only
// decides whether, how much, and to whom; an Executor moves the value.
package transfer

import (
	"github.com/castellan-labs/disburse/pkg/schedule"

	"github.com/google/uuid"
)

// Kind discriminates the wire shape of an instruction.
type Kind string

const (
	// KindNative is a bank-send of native currency.
	KindNative Kind = "NATIVE_SEND"
	// KindToken is a contract call invoking the token's transfer entry point.
	KindToken Kind = "TOKEN_TRANSFER"
)

// Instruction is one outbound transfer directive. InstructionID is assigned
// at emission for audit correlation; ObligationID ties it back to the record
// that authorized it.
type Instruction struct {
	InstructionID string `json:"instruction_id"`
	ObligationID  uint64 `json:"obligation_id"`
	Kind          Kind   `json:"kind"`
	Recipient     string `json:"recipient"`
	Denom         string `json:"denom,omitempty"`    // NATIVE_SEND only
	Contract      string `json:"contract,omitempty"` // TOKEN_TRANSFER only
	Amount        int64  `json:"amount"`
}

// ForObligation builds the single instruction disbursing ob's asset to the
// given destination. The destination is normally ob.Recipient; StopPayment
// passes the owner instead for refunds.
func ForObligation(ob schedule.Obligation, destination string) Instruction {
	inst := Instruction{
		InstructionID: uuid.New().String(),
		ObligationID:  ob.ID,
		Recipient:     destination,
		Amount:        ob.Asset.Amount,
	}
	switch ob.Asset.Kind {
	case schedule.AssetToken:
		inst.Kind = KindToken
		inst.Contract = ob.Asset.Contract
	default:
		inst.Kind = KindNative
		inst.Denom = ob.Asset.Denom
	}
	return inst
}
