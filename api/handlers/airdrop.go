package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"

	"github.com/malbeclabs/airdrop/api/metrics"
	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/claimcache"
	"github.com/malbeclabs/airdrop/indexer/pkg/indexer"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
)

// Airdrop is the read side served over HTTP. *indexer.Indexer implements it.
type Airdrop interface {
	GetLeaf(claimant solana.PublicKey) (merkle.Leaf, error)
	GetClaimStatus(claimant solana.PublicKey) (claimcache.Entry[account.ClaimStatus], error)
	Eligibility(claimant solana.PublicKey) (indexer.Eligibility, error)
	Distributors() []indexer.DistributorSummary
	MaxNumNodes() uint64
	MaxTotalClaim() uint64
}

var _ Airdrop = (*indexer.Indexer)(nil)

type Handlers struct {
	log     *slog.Logger
	airdrop Airdrop
}

func New(log *slog.Logger, airdrop Airdrop) *Handlers {
	return &Handlers{log: log, airdrop: airdrop}
}

// Mount registers the airdrop routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/", h.GetRoot)
	r.Get("/distributors", h.GetDistributors)
	r.Get("/user/{pubkey}", h.GetUser)
	r.Get("/claim/{pubkey}", h.GetClaim)
	r.Get("/eligibility/{pubkey}", h.GetEligibility)
}

// ErrorResponse is the body of every non-2xx airdrop response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type DistributorsResponse struct {
	MaxNumNodes   uint64                `json:"max_num_nodes"`
	MaxTotalClaim uint64                `json:"max_total_claim"`
	Trees         []DistributorResponse `json:"trees"`
}

type DistributorResponse struct {
	DistributorPubkey string               `json:"distributor_pubkey"`
	AirdropVersion    uint64               `json:"airdrop_version"`
	MaxNumNodes       uint64               `json:"max_num_nodes"`
	MaxTotalClaim     uint64               `json:"max_total_claim"`
	MerkleRoot        string               `json:"merkle_root"`
	OnChain           *account.Distributor `json:"on_chain,omitempty"`
}

// UserResponse is a claimant's proof in the shape the claim instruction
// takes it.
type UserResponse struct {
	MerkleTree   string     `json:"merkle_tree"`
	Amount       uint64     `json:"amount"`
	LockedAmount uint64     `json:"locked_amount"`
	Proof        [][32]byte `json:"proof"`
}

type ClaimResponse struct {
	account.ClaimStatus
	Slot uint64 `json:"slot"`
}

type EligibilityResponse struct {
	Claimant        string     `json:"claimant"`
	MerkleTree      string     `json:"merkle_tree"`
	AirdropVersion  uint64     `json:"airdrop_version"`
	Amount          uint64     `json:"amount"`
	Proof           [][32]byte `json:"proof"`
	StartTs         int64      `json:"start_ts"`
	EndTs           int64      `json:"end_ts"`
	ClawbackStartTs int64      `json:"clawback_start_ts"`
	ClawedBack      bool       `json:"clawed_back"`
	Now             int64      `json:"now"`
	Slot            *uint64    `json:"slot,omitempty"`

	UnlockedAmount     uint64 `json:"unlocked_amount"`
	LockedAmount       uint64 `json:"locked_amount"`
	HasRecord          bool   `json:"has_record"`
	UnlockedClaimable  uint64 `json:"unlocked_claimable"`
	UnlockedClaimed    uint64 `json:"unlocked_claimed"`
	UnlockedForgone    uint64 `json:"unlocked_forgone"`
	LockedVested       uint64 `json:"locked_vested"`
	LockedWithdrawn    uint64 `json:"locked_withdrawn"`
	LockedWithdrawable uint64 `json:"locked_withdrawable"`
	TotalClaimable     uint64 `json:"total_claimable"`
}

func (h *Handlers) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Airdrop API\n"))
}

func (h *Handlers) GetDistributors(w http.ResponseWriter, r *http.Request) {
	summaries := h.airdrop.Distributors()
	resp := DistributorsResponse{
		MaxNumNodes:   h.airdrop.MaxNumNodes(),
		MaxTotalClaim: h.airdrop.MaxTotalClaim(),
		Trees:         make([]DistributorResponse, 0, len(summaries)),
	}
	for _, s := range summaries {
		resp.Trees = append(resp.Trees, DistributorResponse{
			DistributorPubkey: s.Address.String(),
			AirdropVersion:    s.Version,
			MaxNumNodes:       s.MaxNumNodes,
			MaxTotalClaim:     s.MaxTotalClaim,
			MerkleRoot:        base58.Encode(s.Root[:]),
			OnChain:           s.OnChain,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	claimant, ok := h.parsePubkey(w, r)
	if !ok {
		return
	}
	leaf, err := h.airdrop.GetLeaf(claimant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, UserResponse{
		MerkleTree:   leaf.Distributor.String(),
		Amount:       leaf.Node.UnlockedAmount,
		LockedAmount: leaf.Node.LockedAmount,
		Proof:        leaf.Node.Proof,
	})
}

func (h *Handlers) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimant, ok := h.parsePubkey(w, r)
	if !ok {
		return
	}
	entry, err := h.airdrop.GetClaimStatus(claimant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ClaimResponse{ClaimStatus: entry.Data, Slot: entry.Slot})
}

func (h *Handlers) GetEligibility(w http.ResponseWriter, r *http.Request) {
	claimant, ok := h.parsePubkey(w, r)
	if !ok {
		return
	}
	e, err := h.airdrop.Eligibility(claimant)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := EligibilityResponse{
		Claimant:           claimant.String(),
		MerkleTree:         e.Leaf.Distributor.String(),
		AirdropVersion:     e.Leaf.Version,
		Amount:             e.Leaf.Node.UnlockedAmount,
		Proof:              e.Leaf.Node.Proof,
		StartTs:            e.Distributor.StartTs,
		EndTs:              e.Distributor.EndTs,
		ClawbackStartTs:    e.Distributor.ClawbackStartTs,
		ClawedBack:         e.Distributor.ClawedBack,
		Now:                e.Now,
		UnlockedAmount:     e.UnlockedAmount,
		LockedAmount:       e.LockedAmount,
		HasRecord:          e.HasRecord,
		UnlockedClaimable:  e.UnlockedClaimable,
		UnlockedClaimed:    e.UnlockedClaimed,
		UnlockedForgone:    e.UnlockedForgone,
		LockedVested:       e.LockedVested,
		LockedWithdrawn:    e.LockedWithdrawn,
		LockedWithdrawable: e.LockedWithdrawable,
		TotalClaimable:     e.TotalClaimable,
	}
	if e.ClaimStatus != nil {
		slot := e.ClaimStatus.Slot
		resp.Slot = &slot
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) parsePubkey(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	raw := chi.URLParam(r, "pubkey")
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_pubkey",
			Message: "invalid public key: " + raw,
		})
		return solana.PublicKey{}, false
	}
	return pk, true
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, indexer.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, indexer.ErrDistributorUnavailable):
		metrics.EligibilityErrorsTotal.WithLabelValues("distributor_unavailable").Inc()
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "distributor_unavailable", Message: err.Error()})
	default:
		metrics.EligibilityErrorsTotal.WithLabelValues("internal").Inc()
		h.log.Error("handlers: request failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal error"})
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("handlers: failed to write response", "error", err)
	}
}
