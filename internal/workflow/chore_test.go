package workflow

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/database"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/streak"
)

// Wednesday, mid-morning.
var choreTestNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func setupChoreTest(t *testing.T) (*ChoreService, *store.ChoreStore, *store.KidStore, *ledger.Ledger) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	chores := store.NewChoreStore(db)
	kids := store.NewKidStore(db)
	l := ledger.New(db)
	svc := NewChoreService(chores, kids, l, streak.NewTracker(chores, kids), slog.Default())
	svc.SetClock(func() time.Time { return choreTestNow })
	return svc, chores, kids, l
}

func makeKid(t *testing.T, kids *store.KidStore, name string) *model.Kid {
	t.Helper()
	kid, err := kids.Create(name, "#3B82F6", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	return kid
}

func makeChore(t *testing.T, chores *store.ChoreStore, p store.ChoreParams) *model.Chore {
	t.Helper()
	if p.RecurringFrequency == "" {
		p.RecurringFrequency = model.FrequencyNone
	}
	chore, err := chores.Create(p)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return chore
}

func TestClaimAndApprove(t *testing.T) {
	svc, chores, kids, l := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	if _, err := kids.SetMultiplier(kid.ID, 1.25); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Dishes",
		DefaultPoints: 20,
		AssignedKids:  []int64{kid.ID},
	})

	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Status != model.ClaimClaimed {
		t.Errorf("status = %q, want claimed", claim.Status)
	}
	if claim.ChoreTitle != "Dishes" {
		t.Errorf("chore_title = %q, want Dishes", claim.ChoreTitle)
	}

	// Claiming awards nothing.
	balance, err := l.Balance(kid.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance after claim = %d, want 0", balance)
	}

	// 20 * 1.25 = 25
	decided, balance, err := svc.Approve(claim.ID, "mom", nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if balance != 25 {
		t.Errorf("balance = %d, want 25", balance)
	}
	if decided.Status != model.ClaimApproved {
		t.Errorf("status = %q, want approved", decided.Status)
	}
	if decided.PointsAwarded == nil || *decided.PointsAwarded != 25 {
		t.Errorf("points_awarded = %v, want 25", decided.PointsAwarded)
	}
	if decided.DecidedBy == nil || *decided.DecidedBy != "mom" {
		t.Errorf("decided_by = %v, want mom", decided.DecidedBy)
	}

	got, err := kids.GetByID(kid.ID)
	if err != nil {
		t.Fatalf("get kid: %v", err)
	}
	if got.CompletedTotal != 1 {
		t.Errorf("completed_total = %d, want 1", got.CompletedTotal)
	}
	if got.ChoreStreak != 1 {
		t.Errorf("streak = %d, want 1", got.ChoreStreak)
	}

	badges, err := kids.ListBadges(kid.ID)
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(badges) != 1 || badges[0].Badge != "first_chore" {
		t.Errorf("badges = %v, want [first_chore]", badges)
	}
}

func TestApproveRoundsHalfAwayFromZero(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Theo")
	if _, err := kids.SetMultiplier(kid.ID, 1.5); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Sweep",
		DefaultPoints: 5,
		AssignedKids:  []int64{kid.ID},
	})

	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// 5 * 1.5 = 7.5 rounds to 8
	_, balance, err := svc.Approve(claim.ID, "dad", nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if balance != 8 {
		t.Errorf("balance = %d, want 8", balance)
	}
}

func TestApproveWithOverride(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Laundry",
		DefaultPoints: 20,
		AssignedKids:  []int64{kid.ID},
	})

	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	override := 7
	decided, balance, err := svc.Approve(claim.ID, "mom", &override)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if balance != 7 {
		t.Errorf("balance = %d, want 7", balance)
	}
	if decided.PointsAwarded == nil || *decided.PointsAwarded != 7 {
		t.Errorf("points_awarded = %v, want 7", decided.PointsAwarded)
	}
}

func TestApproveNegativeOverride(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Vacuum",
		DefaultPoints: 10,
		AssignedKids:  []int64{kid.ID},
	})
	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	bad := -5
	if _, _, err := svc.Approve(claim.ID, "mom", &bad); !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestClaimNotAssigned(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	maya := makeKid(t, kids, "Maya")
	theo := makeKid(t, kids, "Theo")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Feed cat",
		DefaultPoints: 5,
		AssignedKids:  []int64{maya.ID},
	})

	if _, err := svc.Claim(chore.ID, theo.ID); !errors.Is(err, core.ErrNotAssigned) {
		t.Errorf("err = %v, want ErrNotAssigned", err)
	}
}

func TestClaimSharedChoreOpenToAll(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Theo")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Set table",
		DefaultPoints: 5,
		SharedChore:   true,
	})

	if _, err := svc.Claim(chore.ID, kid.ID); err != nil {
		t.Fatalf("claim shared chore: %v", err)
	}
}

func TestClaimDuplicateSameDay(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Water plants",
		DefaultPoints: 5,
		AssignedKids:  []int64{kid.ID},
	})

	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// Open claim blocks a second one.
	if _, err := svc.Claim(chore.ID, kid.ID); !errors.Is(err, core.ErrDuplicateClaim) {
		t.Errorf("err = %v, want ErrDuplicateClaim", err)
	}

	// So does a decided claim from the same day.
	if _, _, err := svc.Approve(claim.ID, "mom", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Claim(chore.ID, kid.ID); !errors.Is(err, core.ErrDuplicateClaim) {
		t.Errorf("err after approval = %v, want ErrDuplicateClaim", err)
	}

	// The next day the chore is claimable again.
	svc.SetClock(func() time.Time { return choreTestNow.Add(24 * time.Hour) })
	if _, err := svc.Claim(chore.ID, kid.ID); err != nil {
		t.Errorf("claim next day: %v", err)
	}
}

func TestClaimAllowMultiplePerDay(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:               "Walk dog",
		DefaultPoints:       5,
		AllowMultiplePerDay: true,
		AssignedKids:        []int64{kid.ID},
	})

	if _, err := svc.Claim(chore.ID, kid.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.Claim(chore.ID, kid.ID); err != nil {
		t.Fatalf("second claim: %v", err)
	}
}

func TestClaimCustomScheduleWrongDay(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	// Monday and Friday only; the test clock is a Wednesday.
	chore := makeChore(t, chores, store.ChoreParams{
		Title:              "Trash day",
		DefaultPoints:      5,
		RecurringFrequency: model.FrequencyCustom,
		ApplicableDays:     []int{1, 5},
		AssignedKids:       []int64{kid.ID},
	})

	if _, err := svc.Claim(chore.ID, kid.ID); !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	// Friday works.
	svc.SetClock(func() time.Time { return choreTestNow.Add(48 * time.Hour) })
	if _, err := svc.Claim(chore.ID, kid.ID); err != nil {
		t.Errorf("claim on scheduled day: %v", err)
	}
}

func TestApproveTwice(t *testing.T) {
	svc, chores, kids, l := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Mow lawn",
		DefaultPoints: 30,
		AssignedKids:  []int64{kid.ID},
	})
	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, _, err := svc.Approve(claim.ID, "mom", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, _, err := svc.Approve(claim.ID, "dad", nil); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second approve err = %v, want ErrInvalidState", err)
	}

	// The balance moved exactly once.
	balance, err := l.Balance(kid.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 30 {
		t.Errorf("balance = %d, want 30", balance)
	}
}

func TestDisapprove(t *testing.T) {
	svc, chores, kids, l := setupChoreTest(t)

	kid := makeKid(t, kids, "Theo")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Homework",
		DefaultPoints: 15,
		AssignedKids:  []int64{kid.ID},
	})
	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	decided, err := svc.Disapprove(claim.ID, "dad")
	if err != nil {
		t.Fatalf("disapprove: %v", err)
	}
	if decided.Status != model.ClaimDisapproved {
		t.Errorf("status = %q, want disapproved", decided.Status)
	}

	balance, err := l.Balance(kid.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	// Decisions are terminal.
	if _, _, err := svc.Approve(claim.ID, "mom", nil); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("approve after disapprove err = %v, want ErrInvalidState", err)
	}
}

func TestChoreDeleteDisapprovesOpenClaims(t *testing.T) {
	svc, chores, kids, _ := setupChoreTest(t)

	kid := makeKid(t, kids, "Maya")
	chore := makeChore(t, chores, store.ChoreParams{
		Title:         "Dust shelves",
		DefaultPoints: 5,
		AssignedKids:  []int64{kid.ID},
	})
	claim, err := svc.Claim(chore.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := chores.Delete(chore.ID); err != nil {
		t.Fatalf("delete chore: %v", err)
	}

	got, err := chores.GetClaimByID(claim.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got == nil {
		t.Fatal("claim should survive chore deletion")
	}
	if got.Status != model.ClaimDisapproved {
		t.Errorf("status = %q, want disapproved", got.Status)
	}
	if got.ChoreID != nil {
		t.Errorf("chore_id = %v, want nil", got.ChoreID)
	}
	if got.ChoreTitle != "Dust shelves" {
		t.Errorf("chore_title = %q, want snapshot preserved", got.ChoreTitle)
	}
}
