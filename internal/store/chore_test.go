package store

import (
	"testing"
	"time"

	"github.com/finchley/pocketmoney/internal/database"
	"github.com/finchley/pocketmoney/internal/model"
)

func setupChoreStoreTest(t *testing.T) (*ChoreStore, *KidStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewChoreStore(db), NewKidStore(db)
}

func openClaim(t *testing.T, cs *ChoreStore, ks *KidStore) (*model.ChoreClaim, *model.Kid) {
	t.Helper()
	kid, err := ks.Create("Maya", "#3B82F6", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	chore, err := cs.Create(ChoreParams{Title: "Dishes", DefaultPoints: 10, RecurringFrequency: model.FrequencyNone, AssignedKids: []int64{kid.ID}})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	claim, err := cs.CreateClaim(chore, kid.ID, time.Now())
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	return claim, kid
}

func TestDecideClaimApproveBumpsCompletedTotal(t *testing.T) {
	cs, ks := setupChoreStoreTest(t)
	claim, kid := openClaim(t, cs, ks)

	award := 10
	ok, err := cs.DecideClaim(claim.ID, model.ClaimApproved, "parent", &award, time.Now())
	if err != nil {
		t.Fatalf("decide claim: %v", err)
	}
	if !ok {
		t.Fatal("decide claim = false, want true")
	}

	got, err := ks.GetByID(kid.ID)
	if err != nil {
		t.Fatalf("get kid: %v", err)
	}
	if got.CompletedTotal != 1 {
		t.Errorf("completed total = %d, want 1", got.CompletedTotal)
	}

	// A second decision loses the guard and must not bump again.
	ok, err = cs.DecideClaim(claim.ID, model.ClaimApproved, "parent", &award, time.Now())
	if err != nil {
		t.Fatalf("second decide: %v", err)
	}
	if ok {
		t.Error("second decide = true, want false")
	}
	got, _ = ks.GetByID(kid.ID)
	if got.CompletedTotal != 1 {
		t.Errorf("completed total after losing decide = %d, want 1", got.CompletedTotal)
	}
}

func TestDecideClaimDisapproveLeavesCounter(t *testing.T) {
	cs, ks := setupChoreStoreTest(t)
	claim, kid := openClaim(t, cs, ks)

	ok, err := cs.DecideClaim(claim.ID, model.ClaimDisapproved, "parent", nil, time.Now())
	if err != nil {
		t.Fatalf("decide claim: %v", err)
	}
	if !ok {
		t.Fatal("decide claim = false, want true")
	}

	got, _ := ks.GetByID(kid.ID)
	if got.CompletedTotal != 0 {
		t.Errorf("completed total = %d, want 0", got.CompletedTotal)
	}
}

func TestRevertClaimDecision(t *testing.T) {
	cs, ks := setupChoreStoreTest(t)
	claim, kid := openClaim(t, cs, ks)

	award := 10
	if _, err := cs.DecideClaim(claim.ID, model.ClaimApproved, "parent", &award, time.Now()); err != nil {
		t.Fatalf("decide claim: %v", err)
	}

	if err := cs.RevertClaimDecision(claim.ID); err != nil {
		t.Fatalf("revert: %v", err)
	}

	reverted, err := cs.GetClaimByID(claim.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if reverted.Status != model.ClaimClaimed {
		t.Errorf("status = %q, want claimed", reverted.Status)
	}
	if reverted.PointsAwarded != nil || reverted.DecidedAt != nil || reverted.DecidedBy != nil {
		t.Errorf("decided fields not cleared: %+v", reverted)
	}

	got, _ := ks.GetByID(kid.ID)
	if got.CompletedTotal != 0 {
		t.Errorf("completed total = %d, want 0 after revert", got.CompletedTotal)
	}

	// The claim is decidable again.
	ok, err := cs.DecideClaim(claim.ID, model.ClaimApproved, "parent", &award, time.Now())
	if err != nil {
		t.Fatalf("re-decide: %v", err)
	}
	if !ok {
		t.Error("re-decide = false, want true")
	}
}

func TestRevertClaimDecisionNotApproved(t *testing.T) {
	cs, ks := setupChoreStoreTest(t)
	claim, _ := openClaim(t, cs, ks)

	if err := cs.RevertClaimDecision(claim.ID); err == nil {
		t.Error("revert of an open claim should fail")
	}
}
