package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/castellan-labs/disburse/pkg/auth"
	"github.com/castellan-labs/disburse/pkg/engine"
	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/store"
	"github.com/castellan-labs/disburse/pkg/transfer"
)

// AddObligationsRequest is the body of POST /v1/obligations.
type AddObligationsRequest struct {
	Schedule []schedule.Entry `json:"schedule"`
}

// SweepResponse reports what a sweep emitted. Executed is false when the
// downstream executor reported a failure; the obligations stay paid either
// way, since disbursement was authorized exactly once.
type SweepResponse struct {
	Instructions []InstructionView `json:"instructions"`
	Executed     bool              `json:"executed"`
}

// InstructionView is the JSON projection of a transfer instruction.
type InstructionView struct {
	InstructionID string `json:"instruction_id"`
	ObligationID  uint64 `json:"obligation_id"`
	Kind          string `json:"kind"`
	Recipient     string `json:"recipient"`
	Denom         string `json:"denom,omitempty"`
	Contract      string `json:"contract,omitempty"`
	Amount        int64  `json:"amount"`
}

func viewOf(inst transfer.Instruction) InstructionView {
	return InstructionView{
		InstructionID: inst.InstructionID,
		ObligationID:  inst.ObligationID,
		Kind:          string(inst.Kind),
		Recipient:     inst.Recipient,
		Denom:         inst.Denom,
		Contract:      inst.Contract,
		Amount:        inst.Amount,
	}
}

// UpdateOwnerRequest is the body of PUT /v1/config/owner.
type UpdateOwnerRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleAddObligations(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFromContext(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AddObligationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Schedule) == 0 {
		WriteBadRequest(w, "Schedule must not be empty")
		return
	}
	for i, entry := range req.Schedule {
		if err := entry.Validate(); err != nil {
			WriteBadRequest(w, fmt.Sprintf("Schedule entry %d: %v", i, err))
			return
		}
	}

	if err := s.engine.AddObligations(r.Context(), caller, req.Schedule); err != nil {
		if errors.Is(err, engine.ErrUnauthorized) {
			WriteForbidden(w, "")
			return
		}
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ref := s.blocks.Current()
	instructions, err := s.engine.Sweep(r.Context(), ref)
	if err != nil {
		if errors.Is(err, engine.ErrSweepLocked) {
			WriteConflict(w, "A sweep is already in progress")
			return
		}
		WriteInternal(w, err)
		return
	}

	executed := true
	if len(instructions) > 0 && s.executor != nil {
		if execErr := s.executor.Execute(r.Context(), instructions); execErr != nil {
			// Paid flags are already committed; the failure belongs to the
			// transfer layer and is reported, not retried.
			s.logger.Error("executor failed", "error", execErr, "instructions", len(instructions))
			executed = false
		}
	}

	resp := SweepResponse{Instructions: make([]InstructionView, 0, len(instructions)), Executed: executed}
	for _, inst := range instructions {
		resp.Instructions = append(resp.Instructions, viewOf(inst))
	}
	writeJSON(w, resp)
}

func (s *Server) handleStopPayment(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFromContext(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid obligation id")
		return
	}

	refund, err := s.engine.StopPayment(r.Context(), caller, id)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnauthorized):
			WriteForbidden(w, "")
		case errors.Is(err, engine.ErrNotFound):
			WriteNotFound(w, "Obligation does not exist")
		case errors.Is(err, engine.ErrAlreadyPaid):
			WriteConflict(w, "Obligation already paid")
		case errors.Is(err, engine.ErrAlreadyStopped):
			WriteConflict(w, "Obligation already stopped")
		case errors.Is(err, engine.ErrSweepLocked):
			WriteConflict(w, "A sweep is already in progress")
		default:
			WriteInternal(w, err)
		}
		return
	}

	if s.executor != nil {
		if execErr := s.executor.Execute(r.Context(), []transfer.Instruction{refund}); execErr != nil {
			s.logger.Error("refund executor failed", "error", execErr, "obligation_id", id)
		}
	}
	writeJSON(w, viewOf(refund))
}

func (s *Server) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFromContext(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req UpdateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Owner == "" {
		WriteBadRequest(w, "Missing required field: owner")
		return
	}

	if err := s.engine.UpdateOwner(r.Context(), caller, req.Owner); err != nil {
		if errors.Is(err, engine.ErrUnauthorized) {
			WriteForbidden(w, "")
			return
		}
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObligations(w http.ResponseWriter, r *http.Request) {
	obligations, err := s.engine.ListObligations(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, map[string]any{"obligations": obligations})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetConfig(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			WriteNotFound(w, "Engine is not initialized")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
