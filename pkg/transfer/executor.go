package transfer

import (
	"context"
	"log/slog"
	"sync"
)

// Executor consumes emitted instructions and performs the actual value
// movement. Execution outcome is reported independently of the engine: an
// obligation marked paid stays paid even if the executor later fails.
type Executor interface {
	Execute(ctx context.Context, instructions []Instruction) error
}

// Recorder is an in-memory Executor for tests and demos. It records every
// instruction it receives and can be armed to fail.
type Recorder struct {
	mu       sync.Mutex
	executed []Instruction
	failWith error
}

var _ Executor = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith arms the recorder to return err from Execute. Instructions are
// still recorded first, mirroring an executor that accepts a batch and then
// reports a downstream failure.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *Recorder) Execute(ctx context.Context, instructions []Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range instructions {
		slog.Debug("recorder executing transfer",
			"instruction_id", inst.InstructionID,
			"obligation_id", inst.ObligationID,
			"kind", string(inst.Kind),
			"recipient", inst.Recipient,
			"amount", inst.Amount)
	}
	r.executed = append(r.executed, instructions...)
	return r.failWith
}

// Executed returns a copy of everything executed so far.
func (r *Recorder) Executed() []Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instruction, len(r.executed))
	copy(out, r.executed)
	return out
}
