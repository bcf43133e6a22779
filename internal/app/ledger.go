package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/chefkeenan/Lume/internal/domain"
)

// TxRunner runs fn inside a single database transaction. Calls nest: an
// inner WithTx joins the outer transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit queues fn to run once the enclosing transaction commits.
	// Rolled back transactions drop their queued actions.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// LedgerRepository is the storage side of the capacity ledger.
type LedgerRepository interface {
	// LockResource takes an exclusive row lock and reads the resource.
	LockResource(ctx context.Context, ref domain.ResourceRef) (domain.Resource, error)
	// CountClaims recomputes consumption from live rows, ignoring the
	// reservations listed in exclude.
	CountClaims(ctx context.Context, ref domain.ResourceRef, exclude []string) (domain.Claims, error)
	// SaveCapacity writes back stock, display counters and availability.
	SaveCapacity(ctx context.Context, res domain.Resource) error
}

// LockOptions tune how claims are recomputed under the lock.
type LockOptions struct {
	// Exclude drops the listed reservations from the pending count.
	Exclude []string
	// ConfirmedOnly ignores pending holds. Finalization uses it so other
	// owners' holds cannot block a reservation that already holds a seat.
	ConfirmedOnly bool
}

// CapacityLedger is the only place capacity decisions read from. It never
// trusts a stored counter: every read locks the row and recounts.
type CapacityLedger struct {
	repo LedgerRepository
}

func NewCapacityLedger(repo LedgerRepository) *CapacityLedger {
	return &CapacityLedger{repo: repo}
}

// LockAndRead locks ref and returns it with freshly counted claims.
func (l *CapacityLedger) LockAndRead(ctx context.Context, ref domain.ResourceRef, opts LockOptions) (domain.Resource, error) {
	if !ref.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	res, err := l.repo.LockResource(ctx, ref)
	if err != nil {
		return nil, err
	}
	claims, err := l.repo.CountClaims(ctx, ref, opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.ConfirmedOnly {
		claims.Pending = 0
	}
	res.SetClaims(claims)
	return res, nil
}

// LockAll locks every distinct ref in ascending (id, kind) order so two
// finalizations over overlapping sets cannot deadlock.
func (l *CapacityLedger) LockAll(ctx context.Context, refs []domain.ResourceRef, opts LockOptions) (map[domain.ResourceRef]domain.Resource, error) {
	ordered := SortedRefs(refs)
	locked := make(map[domain.ResourceRef]domain.Resource, len(ordered))
	for _, ref := range ordered {
		res, err := l.LockAndRead(ctx, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("lock %s %s: %w", ref.Kind, ref.ID, err)
		}
		locked[ref] = res
	}
	return locked, nil
}

// ConfirmedCount recomputes confirmed consumption for ref.
func (l *CapacityLedger) ConfirmedCount(ctx context.Context, ref domain.ResourceRef) (int, error) {
	claims, err := l.repo.CountClaims(ctx, ref, nil)
	if err != nil {
		return 0, err
	}
	return claims.Confirmed, nil
}

// Write persists capacity changes made to a locked resource.
func (l *CapacityLedger) Write(ctx context.Context, res domain.Resource) error {
	return l.repo.SaveCapacity(ctx, res)
}

// SortedRefs dedupes refs and sorts them into lock order.
func SortedRefs(refs []domain.ResourceRef) []domain.ResourceRef {
	seen := make(map[domain.ResourceRef]struct{}, len(refs))
	out := make([]domain.ResourceRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
