// Package schedule defines the payout domain model: obligations, the asset
// tagged union, and the height/time trigger that arms each obligation.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// AssetKind discriminates the asset union. Exactly one variant's fields are
// populated per asset; constructors and Validate enforce this.
type AssetKind string

const (
	// AssetNative is chain-native currency identified by a denomination string.
	AssetNative AssetKind = "NATIVE"
	// AssetToken is a fungible token held by a contract/issuer.
	AssetToken AssetKind = "TOKEN"
)

// Asset is the value a single obligation disburses.
// Amounts use integer minor units to avoid floating point errors.
type Asset struct {
	Kind     AssetKind `json:"kind"`
	Denom    string    `json:"denom,omitempty"`    // NATIVE only
	Contract string    `json:"contract,omitempty"` // TOKEN only
	Amount   int64     `json:"amount"`
}

// NewNativeAsset builds a native-currency asset.
func NewNativeAsset(denom string, amount int64) Asset {
	return Asset{Kind: AssetNative, Denom: denom, Amount: amount}
}

// NewTokenAsset builds a fungible-token asset addressed at its contract.
func NewTokenAsset(contract string, amount int64) Asset {
	return Asset{Kind: AssetToken, Contract: contract, Amount: amount}
}

// Validate checks the union invariant: one variant, positive amount.
func (a Asset) Validate() error {
	if a.Amount <= 0 {
		return fmt.Errorf("asset amount must be positive, got %d", a.Amount)
	}
	switch a.Kind {
	case AssetNative:
		if a.Denom == "" {
			return errors.New("native asset requires a denom")
		}
		if a.Contract != "" {
			return errors.New("native asset must not carry a contract address")
		}
	case AssetToken:
		if a.Contract == "" {
			return errors.New("token asset requires a contract address")
		}
		if a.Denom != "" {
			return errors.New("token asset must not carry a denom")
		}
	default:
		return fmt.Errorf("unknown asset kind %q", a.Kind)
	}
	return nil
}

// TriggerKind discriminates the trigger variants.
type TriggerKind string

const (
	// TriggerAtHeight fires once the chain height reaches H.
	TriggerAtHeight TriggerKind = "AT_HEIGHT"
	// TriggerAtTime fires once wall-clock time reaches T.
	TriggerAtTime TriggerKind = "AT_TIME"
	// TriggerNever never fires; the obligation stays inert until stopped.
	TriggerNever TriggerKind = "NEVER"
)

// Trigger is the expiration condition arming an obligation.
type Trigger struct {
	Kind   TriggerKind `json:"kind"`
	Height uint64      `json:"height,omitempty"`
	Time   time.Time   `json:"time,omitempty"`
}

// AtHeight builds a height trigger.
func AtHeight(h uint64) Trigger {
	return Trigger{Kind: TriggerAtHeight, Height: h}
}

// AtTime builds a timestamp trigger.
func AtTime(t time.Time) Trigger {
	return Trigger{Kind: TriggerAtTime, Time: t}
}

// Never builds the inert sentinel trigger.
func Never() Trigger {
	return Trigger{Kind: TriggerNever}
}

// Validate rejects malformed triggers.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerAtHeight, TriggerNever:
		return nil
	case TriggerAtTime:
		if t.Time.IsZero() {
			return errors.New("time trigger requires a timestamp")
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
}

// BlockRef is the time/height oracle reading triggers are evaluated against.
type BlockRef struct {
	Height uint64
	Time   time.Time
}

// Expired reports whether the trigger has fired at ref.
// A malformed or Never trigger is simply not expired.
func (t Trigger) Expired(ref BlockRef) bool {
	switch t.Kind {
	case TriggerAtHeight:
		return ref.Height >= t.Height
	case TriggerAtTime:
		return !t.Time.IsZero() && !ref.Time.Before(t.Time)
	default:
		return false
	}
}

// Entry is one row of a schedule submitted to Initialize or AddObligations.
// It is an Obligation before id assignment.
type Entry struct {
	Recipient string  `json:"recipient"`
	Asset     Asset   `json:"asset"`
	Trigger   Trigger `json:"trigger"`
}

// Validate checks a schedule entry before it is admitted to the store.
func (e Entry) Validate() error {
	if e.Recipient == "" {
		return errors.New("entry requires a recipient")
	}
	if err := e.Asset.Validate(); err != nil {
		return fmt.Errorf("entry asset: %w", err)
	}
	if err := e.Trigger.Validate(); err != nil {
		return fmt.Errorf("entry trigger: %w", err)
	}
	return nil
}

// Obligation is one durable scheduled-payment record.
// Paid and Stopped are one-way latches; neither is ever reset.
type Obligation struct {
	ID        uint64  `json:"id"`
	Recipient string  `json:"recipient"`
	Asset     Asset   `json:"asset"`
	Trigger   Trigger `json:"trigger"`
	Paid      bool    `json:"paid"`
	Stopped   bool    `json:"stopped"`
}

// Payable reports whether the obligation is eligible for disbursement at ref.
func (o Obligation) Payable(ref BlockRef) bool {
	return !o.Paid && !o.Stopped && o.Trigger.Expired(ref)
}

// Stoppable reports whether StopPayment may still cancel the obligation.
func (o Obligation) Stoppable() bool {
	return !o.Paid && !o.Stopped
}
