package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/airdrop/api/handlers"
	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/claimcache"
	"github.com/malbeclabs/airdrop/indexer/pkg/indexer"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
	"github.com/malbeclabs/airdrop/indexer/pkg/vesting"
	airdroptesting "github.com/malbeclabs/airdrop/utils/pkg/testing"
)

type mockAirdrop struct {
	getLeafFunc        func(solana.PublicKey) (merkle.Leaf, error)
	getClaimStatusFunc func(solana.PublicKey) (claimcache.Entry[account.ClaimStatus], error)
	eligibilityFunc    func(solana.PublicKey) (indexer.Eligibility, error)
	distributors       []indexer.DistributorSummary
}

func (m *mockAirdrop) GetLeaf(claimant solana.PublicKey) (merkle.Leaf, error) {
	if m.getLeafFunc != nil {
		return m.getLeafFunc(claimant)
	}
	return merkle.Leaf{}, indexer.ErrNotFound
}

func (m *mockAirdrop) GetClaimStatus(claimant solana.PublicKey) (claimcache.Entry[account.ClaimStatus], error) {
	if m.getClaimStatusFunc != nil {
		return m.getClaimStatusFunc(claimant)
	}
	return claimcache.Entry[account.ClaimStatus]{}, indexer.ErrNotFound
}

func (m *mockAirdrop) Eligibility(claimant solana.PublicKey) (indexer.Eligibility, error) {
	if m.eligibilityFunc != nil {
		return m.eligibilityFunc(claimant)
	}
	return indexer.Eligibility{}, indexer.ErrNotFound
}

func (m *mockAirdrop) Distributors() []indexer.DistributorSummary { return m.distributors }

func (m *mockAirdrop) MaxNumNodes() uint64 {
	var n uint64
	for _, d := range m.distributors {
		n += d.MaxNumNodes
	}
	return n
}

func (m *mockAirdrop) MaxTotalClaim() uint64 {
	var n uint64
	for _, d := range m.distributors {
		n += d.MaxTotalClaim
	}
	return n
}

func serve(t *testing.T, a handlers.Airdrop, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	handlers.New(airdroptesting.NewLogger(), a).Mount(r)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAirdrop_Handlers_Root(t *testing.T) {
	t.Parallel()

	rec := serve(t, &mockAirdrop{}, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Airdrop API\n", rec.Body.String())
}

func TestAirdrop_Handlers_Distributors(t *testing.T) {
	t.Parallel()

	root := solana.Hash{1, 2, 3}
	addr0 := airdroptesting.PublicKey(10)
	addr1 := airdroptesting.PublicKey(11)
	a := &mockAirdrop{distributors: []indexer.DistributorSummary{
		{
			DistributorInfo: merkle.DistributorInfo{Address: addr0, Version: 0, Root: root, MaxNumNodes: 2, MaxTotalClaim: 300},
			OnChain:         &account.Distributor{Version: 0, StartTs: 1000, EndTs: 2000},
		},
		{
			DistributorInfo: merkle.DistributorInfo{Address: addr1, Version: 1, MaxNumNodes: 1, MaxTotalClaim: 50},
		},
	}}

	rec := serve(t, a, "/distributors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[handlers.DistributorsResponse](t, rec)
	assert.Equal(t, uint64(3), resp.MaxNumNodes)
	assert.Equal(t, uint64(350), resp.MaxTotalClaim)
	require.Len(t, resp.Trees, 2)
	assert.Equal(t, addr0.String(), resp.Trees[0].DistributorPubkey)
	assert.Equal(t, base58.Encode(root[:]), resp.Trees[0].MerkleRoot)
	require.NotNil(t, resp.Trees[0].OnChain)
	assert.Equal(t, int64(2000), resp.Trees[0].OnChain.EndTs)
	assert.Equal(t, uint64(1), resp.Trees[1].AirdropVersion)
	assert.Nil(t, resp.Trees[1].OnChain)
}

func TestAirdrop_Handlers_User(t *testing.T) {
	t.Parallel()

	claimant := airdroptesting.PublicKey(1)
	distributor := airdroptesting.PublicKey(10)
	proof := [][32]byte{{7}, {8}}
	a := &mockAirdrop{
		getLeafFunc: func(pk solana.PublicKey) (merkle.Leaf, error) {
			if !pk.Equals(claimant) {
				return merkle.Leaf{}, indexer.ErrNotFound
			}
			return merkle.Leaf{
				Distributor: distributor,
				Node:        merkle.Node{Claimant: claimant, UnlockedAmount: 100, LockedAmount: 40, Proof: proof},
			}, nil
		},
	}

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, a, "/user/"+claimant.String())
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[handlers.UserResponse](t, rec)
		assert.Equal(t, distributor.String(), resp.MerkleTree)
		assert.Equal(t, uint64(100), resp.Amount)
		assert.Equal(t, uint64(40), resp.LockedAmount)
		assert.Equal(t, proof, resp.Proof)
	})

	t.Run("proof is an array of byte arrays", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, a, "/user/"+claimant.String())
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
		var hashes [][]int
		require.NoError(t, json.Unmarshal(raw["proof"], &hashes))
		require.Len(t, hashes, 2)
		assert.Len(t, hashes[0], 32)
		assert.Equal(t, 7, hashes[0][0])
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, a, "/user/"+airdroptesting.PublicKey(2).String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decode[handlers.ErrorResponse](t, rec).Error)
	})

	t.Run("invalid pubkey", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, a, "/user/not-a-key")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_pubkey", decode[handlers.ErrorResponse](t, rec).Error)
	})
}

func TestAirdrop_Handlers_Claim(t *testing.T) {
	t.Parallel()

	claimant := airdroptesting.PublicKey(1)
	status := account.ClaimStatus{
		Claimant:              claimant,
		LockedAmount:          40,
		UnlockedAmount:        100,
		UnlockedAmountClaimed: 75,
		Distributor:           airdroptesting.PublicKey(10),
	}
	a := &mockAirdrop{
		getClaimStatusFunc: func(pk solana.PublicKey) (claimcache.Entry[account.ClaimStatus], error) {
			if !pk.Equals(claimant) {
				return claimcache.Entry[account.ClaimStatus]{}, indexer.ErrNotFound
			}
			return claimcache.Entry[account.ClaimStatus]{Data: status, Slot: 42}, nil
		},
	}

	rec := serve(t, a, "/claim/"+claimant.String())
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handlers.ClaimResponse](t, rec)
	assert.Equal(t, status, resp.ClaimStatus)
	assert.Equal(t, uint64(42), resp.Slot)

	rec = serve(t, a, "/claim/"+airdroptesting.PublicKey(2).String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAirdrop_Handlers_Eligibility(t *testing.T) {
	t.Parallel()

	claimant := airdroptesting.PublicKey(1)
	distributor := airdroptesting.PublicKey(10)
	base := indexer.Eligibility{
		Claimant:    claimant,
		Leaf:        merkle.Leaf{Distributor: distributor, Version: 3, Node: merkle.Node{Claimant: claimant, UnlockedAmount: 1000, LockedAmount: 400, Proof: [][32]byte{}}},
		Distributor: account.Distributor{StartTs: 1000, EndTs: 2000, ClawbackStartTs: 3000},
		Now:         1500,
		Eligibility: vesting.Eligibility{
			UnlockedAmount:     1000,
			LockedAmount:       400,
			UnlockedClaimable:  750,
			UnlockedForgone:    250,
			LockedVested:       200,
			LockedWithdrawable: 200,
			TotalClaimable:     950,
		},
	}

	t.Run("projected", func(t *testing.T) {
		t.Parallel()
		a := &mockAirdrop{eligibilityFunc: func(solana.PublicKey) (indexer.Eligibility, error) { return base, nil }}
		rec := serve(t, a, "/eligibility/"+claimant.String())
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[handlers.EligibilityResponse](t, rec)
		assert.Equal(t, claimant.String(), resp.Claimant)
		assert.Equal(t, distributor.String(), resp.MerkleTree)
		assert.Equal(t, uint64(3), resp.AirdropVersion)
		assert.Equal(t, int64(1000), resp.StartTs)
		assert.Equal(t, int64(2000), resp.EndTs)
		assert.Equal(t, int64(3000), resp.ClawbackStartTs)
		assert.Equal(t, int64(1500), resp.Now)
		assert.Nil(t, resp.Slot)
		assert.False(t, resp.HasRecord)
		assert.Equal(t, uint64(750), resp.UnlockedClaimable)
		assert.Equal(t, uint64(950), resp.TotalClaimable)
	})

	t.Run("recorded", func(t *testing.T) {
		t.Parallel()
		e := base
		e.ClaimStatus = &claimcache.Entry[account.ClaimStatus]{Slot: 9}
		e.Eligibility = vesting.Eligibility{HasRecord: true, UnlockedClaimed: 750, LockedWithdrawable: 100, TotalClaimable: 100}
		a := &mockAirdrop{eligibilityFunc: func(solana.PublicKey) (indexer.Eligibility, error) { return e, nil }}
		rec := serve(t, a, "/eligibility/"+claimant.String())
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[handlers.EligibilityResponse](t, rec)
		require.NotNil(t, resp.Slot)
		assert.Equal(t, uint64(9), *resp.Slot)
		assert.True(t, resp.HasRecord)
		assert.Equal(t, uint64(100), resp.TotalClaimable)
	})

	for name, tc := range map[string]struct {
		err    error
		status int
		code   string
	}{
		"not found":   {err: indexer.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		"unavailable": {err: indexer.ErrDistributorUnavailable, status: http.StatusServiceUnavailable, code: "distributor_unavailable"},
		"arithmetic":  {err: vesting.ErrArithmetic, status: http.StatusInternalServerError, code: "internal_error"},
		"other":       {err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			a := &mockAirdrop{eligibilityFunc: func(solana.PublicKey) (indexer.Eligibility, error) { return indexer.Eligibility{}, tc.err }}
			rec := serve(t, a, "/eligibility/"+claimant.String())
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[handlers.ErrorResponse](t, rec).Error)
		})
	}
}
