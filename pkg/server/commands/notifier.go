package commands

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/storage"
)

const (
	DefaultNotificationWorkers = 4

	// DefaultNotificationBacklog is how many events may wait for a worker
	// before further events are dropped.
	DefaultNotificationBacklog = 1024

	notificationTimeout = 10 * time.Second
)

// NotifierDatastore is the part of the datastore the Notifier writes to.
type NotifierDatastore interface {
	ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error)
	CreateNotifications(ctx context.Context, notifications []*storage.Notification) error
}

// Event describes something that happened in a family that members should hear about.
type Event struct {
	FamilyID string
	Type     storage.NotificationType
	Title    string
	Message  string

	// ActorID is never notified about their own action.
	ActorID string

	// MinRole limits the recipients to members holding at least this role. Empty means everyone.
	MinRole storage.Role

	// UserIDs limits the recipients to these members when set.
	UserIDs []string
}

func (e Event) recipient(m *storage.FamilyMember) bool {
	if m.UserID == e.ActorID {
		return false
	}
	if len(e.UserIDs) > 0 && !slices.Contains(e.UserIDs, m.UserID) {
		return false
	}
	return e.MinRole == "" || m.Role.AtLeast(e.MinRole)
}

// Notifier fans events out to family members in the background on a bounded
// pool of workers. Notify never blocks: once the backlog is full events are
// dropped and logged. Delivery failures are logged and never reach the caller.
type Notifier struct {
	datastore NotifierDatastore
	logger    logger.Logger
	now       func() time.Time
	workers   int
	backlog   int

	mu      sync.Mutex
	closed  bool
	pending int

	// submitting tracks the goroutines handing events to pool.
	submitting sync.WaitGroup
	pool       *pool.Pool
}

type NotifierOption func(*Notifier)

func WithNotifierLogger(l logger.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = l
	}
}

func WithNotifierWorkers(workers int) NotifierOption {
	return func(n *Notifier) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

func WithNotifierBacklog(backlog int) NotifierOption {
	return func(n *Notifier) {
		if backlog >= 0 {
			n.backlog = backlog
		}
	}
}

func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		n.now = now
	}
}

func NewNotifier(datastore NotifierDatastore, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		datastore: datastore,
		logger:    logger.NewNoopLogger(),
		now:       func() time.Time { return time.Now().UTC() },
		workers:   DefaultNotificationWorkers,
		backlog:   DefaultNotificationBacklog,
	}

	for _, opt := range opts {
		opt(n)
	}
	n.pool = pool.New().WithMaxGoroutines(n.workers)
	return n
}

// Notify schedules the delivery of event. It outlives the request that caused
// it: ctx only contributes its values.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		n.logger.WarnWithContext(ctx, "notifier closed, dropping notification",
			zap.String("family_id", event.FamilyID),
			zap.String("type", string(event.Type)),
		)
		return
	case n.pending >= n.workers+n.backlog:
		n.mu.Unlock()
		n.logger.WarnWithContext(ctx, "notification backlog full, dropping notification",
			zap.String("family_id", event.FamilyID),
			zap.String("type", string(event.Type)),
			zap.Int("pending", n.workers+n.backlog),
		)
		return
	}
	n.pending++
	n.submitting.Add(1)
	n.mu.Unlock()

	// pool.Go blocks while every worker is busy, so the hand off happens
	// off the caller's goroutine.
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer n.submitting.Done()
		n.pool.Go(func() { n.run(ctx, event) })
	}()
}

func (n *Notifier) run(ctx context.Context, event Event) {
	defer func() {
		n.mu.Lock()
		n.pending--
		n.mu.Unlock()
	}()

	recovered := panics.Try(func() {
		if err := n.deliver(ctx, event); err != nil {
			n.logger.WarnWithContext(ctx, "failed to deliver notifications",
				zap.String("family_id", event.FamilyID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
	})
	if recovered != nil {
		n.logger.ErrorWithContext(ctx, "panic while delivering notifications", zap.Error(recovered.AsError()))
	}
}

func (n *Notifier) deliver(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()

	members, err := n.datastore.ListMembers(ctx, event.FamilyID)
	if err != nil {
		return fmt.Errorf("listing members: %w", err)
	}

	now := n.now()
	notifications := make([]*storage.Notification, 0, len(members))
	for _, m := range members {
		if !event.recipient(m) {
			continue
		}

		notificationID, err := id.NewStringFromTime(now)
		if err != nil {
			return err
		}

		notifications = append(notifications, &storage.Notification{
			ID:       notificationID,
			UserID:   m.UserID,
			FamilyID: event.FamilyID,
			Type:     event.Type,
			Title:    event.Title,
			Message:  event.Message,
		})
	}

	if len(notifications) == 0 {
		return nil
	}
	return n.datastore.CreateNotifications(ctx, notifications)
}

// Close waits for scheduled deliveries to finish. Events notified afterwards are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	n.submitting.Wait()
	n.pool.Wait()
}
