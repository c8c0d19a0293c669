package zento

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// GuestPreview describes the guest data a device still carries
type GuestPreview struct {
	Pending        bool      `json:"pending"`
	GuestID        uuid.UUID `json:"guest_id,omitempty"`
	Categories     int       `json:"categories"`
	Transactions   int       `json:"transactions"`
	PaymentSources int       `json:"payment_sources"`
}

// MergeConfirmation is the explicit consent variant of the merge: the
// signed in user picks between importing and discarding guest data.
type MergeConfirmation struct {
	repos    RepositoryManager
	engine   *MergeEngine
	logger   Logger
	activity ActivitySink
}

// ConfirmationOption configures a MergeConfirmation
type ConfirmationOption func(*MergeConfirmation)

func WithConfirmationLogger(logger Logger) ConfirmationOption {
	return func(m *MergeConfirmation) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithConfirmationActivitySink(sink ActivitySink) ConfirmationOption {
	return func(m *MergeConfirmation) {
		m.activity = normalizeActivitySink(sink)
	}
}

func NewMergeConfirmation(repos RepositoryManager, engine *MergeEngine, opts ...ConfirmationOption) *MergeConfirmation {
	m := &MergeConfirmation{
		repos:    repos,
		engine:   engine,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Preview reports whether token names a guest other than the signed in
// identity, and how much data it owns.
func (m *MergeConfirmation) Preview(ctx context.Context, session AuthSession, token string) (*GuestPreview, error) {
	accountID, ok := sessionIdentity(session)
	if !ok {
		return nil, ErrUnauthenticated
	}

	preview := &GuestPreview{}
	guestID, err := m.pendingGuest(ctx, accountID, token)
	if err != nil {
		if IsNotFound(err) {
			return preview, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve guest session")
	}

	db := m.repos.DB()
	if preview.Categories, err = m.repos.Categories().CountForTx(ctx, db, guestID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count guest categories")
	}
	if preview.Transactions, err = m.repos.Transactions().CountForTx(ctx, db, guestID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count guest transactions")
	}
	if preview.PaymentSources, err = m.repos.PaymentSources().CountForTx(ctx, db, guestID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count guest payment sources")
	}

	preview.Pending = true
	preview.GuestID = guestID

	return preview, nil
}

// Import runs the merge engine for the pairing. Repeating it is a no-op.
func (m *MergeConfirmation) Import(ctx context.Context, session AuthSession, token string) (*MergeResult, error) {
	if _, ok := sessionIdentity(session); !ok {
		return nil, ErrUnauthenticated
	}
	return m.engine.Merge(ctx, session, token)
}

// Discard drops the guest sessions without moving data. The guest rows stay
// behind, unreachable. It returns the number of sessions removed.
func (m *MergeConfirmation) Discard(ctx context.Context, session AuthSession, token string) (int, error) {
	accountID, ok := sessionIdentity(session)
	if !ok {
		return 0, ErrUnauthenticated
	}

	guestID, err := m.pendingGuest(ctx, accountID, token)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve guest session")
	}

	n, err := m.repos.Sessions().DeleteAllFor(ctx, guestID)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete guest sessions")
	}

	m.logger.Info("guest data discarded", "guest", guestID, "account", accountID, "sessions", n)
	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventGuestDiscarded,
		GuestID:   guestID.String(),
		AccountID: accountID.String(),
		Metadata:  map[string]any{"sessions_deleted": n},
	})

	return n, nil
}

// pendingGuest resolves token without touching the session. It returns
// ErrSessionNotFound when there is nothing to confirm.
func (m *MergeConfirmation) pendingGuest(ctx context.Context, accountID uuid.UUID, token string) (uuid.UUID, error) {
	guestID, err := m.repos.Sessions().ResolveTx(ctx, m.repos.DB(), token)
	if err != nil {
		return uuid.Nil, err
	}
	if guestID == accountID {
		return uuid.Nil, ErrSessionNotFound
	}
	return guestID, nil
}

type ImportGuestMessage struct {
	Session    AuthSession
	Token      string
	OnResponse func(result *MergeResult)
}

func (e ImportGuestMessage) Type() string { return "guest.import" }

type ImportGuestHandler struct {
	flow *MergeConfirmation
}

func NewImportGuestHandler(flow *MergeConfirmation) *ImportGuestHandler {
	return &ImportGuestHandler{flow: flow}
}

func (h *ImportGuestHandler) Execute(ctx context.Context, event ImportGuestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during guest import",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ImportGuestHandler) execute(ctx context.Context, event ImportGuestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	result, err := h.flow.Import(ctx, event.Session, event.Token)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}

type DiscardGuestMessage struct {
	Session    AuthSession
	Token      string
	OnResponse func(sessionsDeleted int)
}

func (e DiscardGuestMessage) Type() string { return "guest.discard" }

type DiscardGuestHandler struct {
	flow *MergeConfirmation
}

func NewDiscardGuestHandler(flow *MergeConfirmation) *DiscardGuestHandler {
	return &DiscardGuestHandler{flow: flow}
}

func (h *DiscardGuestHandler) Execute(ctx context.Context, event DiscardGuestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during guest discard",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DiscardGuestHandler) execute(ctx context.Context, event DiscardGuestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	n, err := h.flow.Discard(ctx, event.Session, event.Token)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(n)
	}

	return nil
}
