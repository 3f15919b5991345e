package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Proton-105/budget-bot/internal/domain"
	apperrors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/state"
)

// ReportPageSize is the number of purchases shown per report page.
const ReportPageSize = 20

// Service runs every inbound message as one locked read-modify-write cycle
// against a single user's record.
type Service struct {
	store           Store
	locker          state.Locker
	log             *slog.Logger
	now             func() time.Time
	defaultTimezone float64
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultTimezone sets the offset assigned to newly created records.
func WithDefaultTimezone(offsetHours float64) Option {
	return func(s *Service) {
		s.defaultTimezone = offsetHours
	}
}

// NewService constructs a Service. A nil locker falls back to an in-process one.
func NewService(store Store, locker state.Locker, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = state.NewMemoryLocker(state.DefaultLockWait)
	}

	s := &Service{
		store:           store,
		locker:          locker,
		log:             log,
		now:             time.Now,
		defaultTimezone: domain.DefaultTimezoneOffset,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// change describes what to write back once an operation has decided.
type change struct {
	put    *domain.Record
	delete bool
}

type operation func(rec *domain.Record, now time.Time) (change, Reply)

// run executes op under the user's lock. rec passed to op is nil when the
// user has no record. Store calls use the lock's context, so a write never
// lands after the lock has been lost.
func (s *Service) run(ctx context.Context, userID int64, name string, op operation) (Reply, error) {
	lockCtx, unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		if errors.Is(err, state.ErrStateLocked) {
			return Reply{}, apperrors.NewBusyError(err)
		}
		return Reply{}, apperrors.NewDatabaseError(fmt.Errorf("lock user %d: %w", userID, err))
	}
	defer unlock()

	rec, err := s.store.Get(lockCtx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrRecordNotFound):
		rec = nil
	default:
		return Reply{}, storeError(lockCtx, "get record", err)
	}

	ch, reply := op(rec, s.now())

	switch {
	case ch.delete:
		if err := s.store.Delete(lockCtx, userID); err != nil {
			return Reply{}, storeError(lockCtx, "delete record", err)
		}
		s.log.Info("budget record deleted", slog.Int64("user_id", userID), slog.String("operation", name))
	case ch.put != nil:
		from := domain.Phase("")
		if rec != nil {
			from = rec.CurrentPhase()
		}

		ch.put.UserID = userID
		ch.put.Normalize()
		if from != "" && !state.IsTransitionAllowed(from, ch.put.Phase) {
			return Reply{}, apperrors.NewStateError(fmt.Sprintf("phase %s cannot follow %s", ch.put.Phase, from))
		}

		if err := s.store.Put(lockCtx, ch.put); err != nil {
			return Reply{}, storeError(lockCtx, "put record", err)
		}

		if from != "" {
			state.RecordTransition(from, ch.put.Phase)
		}
		s.log.Debug("budget record saved",
			slog.Int64("user_id", userID),
			slog.String("operation", name),
			slog.String("phase", string(ch.put.Phase)),
		)
	}

	return reply, nil
}

// storeError reports a store call cut short by a lost lock as busy, so the
// user retries instead of seeing a database failure.
func storeError(lockCtx context.Context, action string, err error) error {
	if errors.Is(context.Cause(lockCtx), state.ErrLockLost) {
		return apperrors.NewBusyError(fmt.Errorf("%s: %w", action, state.ErrLockLost))
	}
	return wrapStoreError(action, err)
}

func wrapStoreError(action string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewDatabaseError(fmt.Errorf("%s: %w", action, err))
}

// HandleText feeds a non-command message into the conversation. A user
// without a record gets a fresh one and is asked to run init first.
func (s *Service) HandleText(ctx context.Context, userID int64, text string) (Reply, error) {
	return s.run(ctx, userID, "text", func(rec *domain.Record, now time.Time) (change, Reply) {
		if rec == nil {
			return change{put: domain.NewRecord(userID, now, s.defaultTimezone)}, newReply(KeyUseInit, nil)
		}

		outcome := Converse(rec, text, now)
		return change{put: outcome.Record}, outcome.Reply
	})
}

// Init creates a record for a new user and leaves an existing one untouched.
func (s *Service) Init(ctx context.Context, userID int64) (Reply, error) {
	return s.run(ctx, userID, "init", func(rec *domain.Record, now time.Time) (change, Reply) {
		if rec != nil {
			return change{}, newReply(KeyAlreadyStarted, nil)
		}
		return change{put: domain.NewRecord(userID, now, s.defaultTimezone)}, newReply(KeyWelcome, nil)
	})
}

// Status reports balance, daily budget and time until local midnight.
func (s *Service) Status(ctx context.Context, userID int64) (Reply, error) {
	return s.run(ctx, userID, "status", func(rec *domain.Record, now time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}

		projection := Project(rec, now)
		hours, minutes := TimeUntilNextLocalMidnight(rec.TimezoneOffset, now)

		reply := newReply(KeyBalance, map[string]string{
			"balance": FormatMoney(projection.Balance),
		})
		reply.projectionLines(projection)
		reply.add(KeyUntilMidnight, map[string]string{
			"hours":   strconv.Itoa(hours),
			"minutes": strconv.Itoa(minutes),
		})

		return change{}, reply
	})
}

// Report lists recorded purchases, numbered from 1, one page at a time.
// Pages are 1-based; out-of-range pages are clamped.
func (s *Service) Report(ctx context.Context, userID int64, page int) (Reply, error) {
	return s.run(ctx, userID, "report", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}
		if len(rec.Purchases) == 0 {
			return change{}, newReply(KeyReportEmpty, nil)
		}

		pages := (len(rec.Purchases) + ReportPageSize - 1) / ReportPageSize
		page = min(max(page, 1), pages)

		reply := newReply(KeyReportHeader, nil)
		reply.Page = page
		reply.Pages = pages

		start := (page - 1) * ReportPageSize
		end := min(start+ReportPageSize, len(rec.Purchases))
		for i := start; i < end; i++ {
			reply.add(KeyReportItem, map[string]string{
				"index":  strconv.Itoa(i + 1),
				"amount": FormatMoney(rec.Purchases[i]),
			})
		}

		return change{}, reply
	})
}

// Refund adds amount back to the balance; purchase history is unchanged.
func (s *Service) Refund(ctx context.Context, userID int64, arg string) (Reply, error) {
	amount, err := ParseAmount(arg)
	if err != nil {
		return newReply(KeyRefundInvalid, nil), nil
	}

	return s.run(ctx, userID, "refund", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}

		updated := rec.Clone()
		updated.TotalAmount = updated.TotalAmount.Add(amount)

		return change{put: updated}, newReply(KeyRefundDone, map[string]string{
			"amount":  FormatMoney(amount),
			"balance": FormatMoney(updated.TotalAmount),
		})
	})
}

// SetLimit replaces the balance outright.
func (s *Service) SetLimit(ctx context.Context, userID int64, arg string) (Reply, error) {
	limit, err := ParseAmount(arg)
	if err != nil {
		return newReply(KeySetLimitInvalid, nil), nil
	}

	return s.run(ctx, userID, "setlimit", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}

		updated := rec.Clone()
		updated.TotalAmount = limit

		return change{put: updated}, newReply(KeySetLimitDone, map[string]string{
			"limit": FormatMoney(limit),
		})
	})
}

// SetDays replaces the day count and keeps the original start date.
func (s *Service) SetDays(ctx context.Context, userID int64, arg string) (Reply, error) {
	days, err := ParseDays(arg)
	if err != nil {
		return newReply(KeySetDaysInvalid, nil), nil
	}

	return s.run(ctx, userID, "setdays", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}

		updated := rec.Clone()
		updated.Days = days

		return change{put: updated}, newReply(KeySetDaysDone, map[string]string{
			"days": strconv.Itoa(days),
		})
	})
}

// SetTimezone stores the user's UTC offset parsed from ±HH:MM.
func (s *Service) SetTimezone(ctx context.Context, userID int64, arg string) (Reply, error) {
	offset, err := ParseOffset(arg)
	if err != nil {
		return newReply(KeyTimezoneInvalid, nil), nil
	}

	return s.run(ctx, userID, "settimezone", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}

		updated := rec.Clone()
		updated.TimezoneOffset = offset

		return change{put: updated}, newReply(KeyTimezoneDone, map[string]string{
			"offset": FormatOffset(offset),
		})
	})
}

// Stop deletes the record; the user starts over as a new user.
func (s *Service) Stop(ctx context.Context, userID int64) (Reply, error) {
	return s.run(ctx, userID, "stop", func(rec *domain.Record, _ time.Time) (change, Reply) {
		if rec == nil {
			return change{}, newReply(KeyNoData, nil)
		}
		return change{delete: true}, newReply(KeyStopDone, nil)
	})
}

// Help lists the available commands.
func (s *Service) Help() Reply {
	return newReply(KeyHelp, nil)
}
