package zento

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
)

// MergeStatus is the outcome of a merge attempt
type MergeStatus string

const (
	MergeStatusMerged  MergeStatus = "merged"
	MergeStatusSkipped MergeStatus = "skipped"
)

// SkipReason explains why a merge did not change anything
type SkipReason string

const (
	SkipUnauthenticated  SkipReason = "unauthenticated"
	SkipNoToken          SkipReason = "no_token"
	SkipTokenNotResolved SkipReason = "token_not_resolved"
	SkipSameIdentity     SkipReason = "same_identity"
	SkipAccountNotFound  SkipReason = "account_not_found"
)

// MergeStats counts the rows touched by a merge
type MergeStats struct {
	CategoriesMoved       int  `json:"categories_moved"`
	CategoriesCollapsed   int  `json:"categories_collapsed"`
	TransactionsRepointed int  `json:"transactions_repointed"`
	TransactionsSwept     int  `json:"transactions_swept"`
	SessionsDeleted       int  `json:"sessions_deleted"`
	GuestDeleted          bool `json:"guest_deleted"`
}

// MergeResult reports what a call to Merge did
type MergeResult struct {
	Status    MergeStatus `json:"status"`
	Reason    SkipReason  `json:"reason,omitempty"`
	GuestID   uuid.UUID   `json:"guest_id"`
	AccountID uuid.UUID   `json:"account_id"`
	Stats     MergeStats  `json:"stats"`
}

// Merged reports whether the merge committed. Only then should the bearer
// cookie be cleared.
func (r *MergeResult) Merged() bool {
	return r != nil && r.Status == MergeStatusMerged
}

// MergeOption configures a MergeEngine
type MergeOption func(*MergeEngine)

func WithMergeLogger(logger Logger) MergeOption {
	return func(e *MergeEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMergeActivitySink(sink ActivitySink) MergeOption {
	return func(e *MergeEngine) {
		e.activity = normalizeActivitySink(sink)
	}
}

// WithMergeIsolation sets the isolation level of the merge transaction
func WithMergeIsolation(level sql.IsolationLevel) MergeOption {
	return func(e *MergeEngine) {
		e.isolation = level
	}
}

// MergeEngine folds a guest identity into an authenticated one
type MergeEngine struct {
	repos     RepositoryManager
	logger    Logger
	activity  ActivitySink
	isolation sql.IsolationLevel
}

func NewMergeEngine(repos RepositoryManager, opts ...MergeOption) *MergeEngine {
	e := &MergeEngine{
		repos:     repos,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		isolation: sql.LevelSerializable,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Merge reassigns everything owned by the guest behind token to the
// authenticated identity in a single transaction. Preconditions that do not
// hold produce a skipped result and a nil error. A non nil error means the
// transaction was rolled back and nothing changed.
func (e *MergeEngine) Merge(ctx context.Context, session AuthSession, token string) (*MergeResult, error) {
	result := &MergeResult{Status: MergeStatusSkipped}

	accountID, hasID := sessionIdentity(session)
	email := ""
	if session != nil {
		email = NormalizeEmail(session.Email())
	}

	switch {
	case !hasID && email == "":
		result.Reason = SkipUnauthenticated
	case HashToken(token) == "":
		result.Reason = SkipNoToken
	}
	if result.Reason != "" {
		e.skipped(ctx, result)
		return result, nil
	}

	opts := &sql.TxOptions{Isolation: e.isolation}
	err := e.repos.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		guestID, err := e.repos.Sessions().ResolveTx(ctx, tx, token)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				result.Reason = SkipTokenNotResolved
				return nil
			}
			return err
		}
		result.GuestID = guestID

		if hasID && guestID == accountID {
			result.Reason = SkipSameIdentity
			return nil
		}

		account, err := e.findAccount(ctx, tx, accountID, email)
		if err != nil {
			if IsNotFound(err) {
				result.Reason = SkipAccountNotFound
				return nil
			}
			return err
		}
		result.AccountID = account.ID

		if account.ID == guestID {
			result.Reason = SkipSameIdentity
			return nil
		}

		stats, err := e.reconcile(ctx, tx, guestID, account.ID)
		if err != nil {
			return err
		}

		result.Stats = stats
		result.Status = MergeStatusMerged
		return nil
	})

	if err != nil {
		e.logger.Error("guest merge rolled back",
			"guest", result.GuestID,
			"account", accountID,
			"error", err,
		)
		recordActivity(ctx, e.activity, e.logger, ActivityEvent{
			EventType: ActivityEventMergeFailed,
			GuestID:   idString(result.GuestID),
			AccountID: idString(accountID),
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "guest merge failed").
			WithTextCode("GUEST_MERGE_FAILED")
	}

	if !result.Merged() {
		e.skipped(ctx, result)
		return result, nil
	}

	e.logger.Info("guest merged",
		"guest", result.GuestID,
		"account", result.AccountID,
	)
	e.logger.Debug("guest merge stats", "stats", print.MaybePrettyJSON(result.Stats))

	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType: ActivityEventGuestMerged,
		GuestID:   result.GuestID.String(),
		AccountID: result.AccountID.String(),
		Metadata: map[string]any{
			"categories_moved":       result.Stats.CategoriesMoved,
			"categories_collapsed":   result.Stats.CategoriesCollapsed,
			"transactions_repointed": result.Stats.TransactionsRepointed,
			"transactions_swept":     result.Stats.TransactionsSwept,
			"sessions_deleted":       result.Stats.SessionsDeleted,
			"guest_deleted":          result.Stats.GuestDeleted,
		},
	})

	return result, nil
}

// findAccount looks the identity up by id and falls back to the email, the
// identity row may not be visible yet when the sign-in event fires.
func (e *MergeEngine) findAccount(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*Identity, error) {
	if id != uuid.Nil {
		account, err := e.repos.Identities().FindByIDTx(ctx, tx, id)
		if err == nil {
			return account, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}

	if email == "" {
		return nil, ErrIdentityNotFound
	}

	return e.repos.Identities().FindByEmailTx(ctx, tx, email)
}

// reconcile runs the ordered merge steps: categories, then the transaction
// sweep, then session and guest cleanup.
func (e *MergeEngine) reconcile(ctx context.Context, tx bun.IDB, guestID, accountID uuid.UUID) (MergeStats, error) {
	stats := MergeStats{}

	guestCategories, err := e.repos.Categories().ListForTx(ctx, tx, guestID)
	if err != nil {
		return stats, err
	}

	accountCategories, err := e.repos.Categories().ListForTx(ctx, tx, accountID)
	if err != nil {
		return stats, err
	}

	fold := cases.Fold()
	index := make(map[string]uuid.UUID, len(accountCategories)+len(guestCategories))
	for _, category := range accountCategories {
		key := categoryKey(fold, category.Name)
		if _, ok := index[key]; !ok {
			index[key] = category.ID
		}
	}

	for _, category := range guestCategories {
		key := categoryKey(fold, category.Name)

		if target, ok := index[key]; ok {
			n, err := e.repos.Transactions().RepointCategoryTx(ctx, tx, category.ID, target)
			if err != nil {
				return stats, err
			}
			if err := e.repos.Categories().DeleteTx(ctx, tx, category.ID); err != nil {
				return stats, err
			}
			stats.TransactionsRepointed += n
			stats.CategoriesCollapsed++
			continue
		}

		if err := e.repos.Categories().MoveTx(ctx, tx, category.ID, accountID); err != nil {
			return stats, err
		}
		index[key] = category.ID
		stats.CategoriesMoved++
	}

	if stats.TransactionsSwept, err = e.repos.Transactions().SweepOwnerTx(ctx, tx, guestID, accountID); err != nil {
		return stats, err
	}

	if stats.SessionsDeleted, err = e.repos.Sessions().DeleteAllForTx(ctx, tx, guestID); err != nil {
		return stats, err
	}

	if stats.GuestDeleted, err = e.repos.Identities().RetireGuestTx(ctx, tx, guestID); err != nil {
		return stats, err
	}

	return stats, nil
}

func (e *MergeEngine) skipped(ctx context.Context, result *MergeResult) {
	if result.Reason == SkipAccountNotFound {
		e.logger.Warn("guest merge skipped, account not found", "guest", result.GuestID)
	} else {
		e.logger.Debug("guest merge skipped", "reason", string(result.Reason))
	}

	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType: ActivityEventMergeSkipped,
		GuestID:   idString(result.GuestID),
		AccountID: idString(result.AccountID),
		Metadata:  map[string]any{"reason": string(result.Reason)},
	})
}

// FoldCategoryName returns the key two category names collide on. It
// applies full Unicode case folding after trimming, so expansions count
// as equal too: "Straße" and "STRASSE" share a key.
func FoldCategoryName(name string) string {
	return categoryKey(cases.Fold(), name)
}

func categoryKey(fold cases.Caser, name string) string {
	return fold.String(strings.TrimSpace(name))
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
