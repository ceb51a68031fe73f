package invite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
)

// Outcome is the delivery result for one attendee
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Delivery is one attendee's entry in the dispatch ledger
type Delivery struct {
	UserID   uuid.UUID `json:"user_id"`
	Outcome  Outcome   `json:"outcome"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
}

// Ledger maps attendee user IDs to their delivery results
type Ledger map[uuid.UUID]Delivery

// Failed lists the deliveries that ended in failure
func (l Ledger) Failed() []Delivery {
	var failed []Delivery
	for _, d := range l {
		if d.Outcome == OutcomeFailed {
			failed = append(failed, d)
		}
	}
	return failed
}

// Attachment is the calendar file shipped with every invite
type Attachment struct {
	Filename string
	Content  []byte
	MimeType string
}

// MailSender delivers one invite email. Implementations must honor ctx
// cancellation.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachment *Attachment) error
}

// PermanentError marks a delivery failure that retrying cannot fix, such
// as a malformed recipient address.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Config tunes the dispatch worker pool and retry policy
type Config struct {
	Workers        int
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultConfig returns the dispatch settings used when none are provided
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Dispatcher fans invite deliveries out across a bounded worker pool. One
// attendee failing never blocks or fails the others; every outcome lands
// in the returned ledger and in the attendee rows.
type Dispatcher struct {
	attendeeRepo repositories.EventAttendeeRepository
	mail         MailSender
	logger       *zap.Logger
	config       Config
}

// NewDispatcher creates an invite dispatcher
func NewDispatcher(
	attendeeRepo repositories.EventAttendeeRepository,
	mail MailSender,
	logger *zap.Logger,
	config Config,
) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	return &Dispatcher{
		attendeeRepo: attendeeRepo,
		mail:         mail,
		logger:       logger,
		config:       config,
	}
}

// Dispatch sends the invite to every attendee row and returns the full
// ledger. Rows already sent, accepted or declined are reported as sent
// without a new delivery, so re-dispatching after a partial failure only
// touches the rows that still need it.
func (d *Dispatcher) Dispatch(ctx context.Context, event *entities.CalendarEvent, attendees []entities.EventAttendee, body string, attachment *Attachment) Ledger {
	d.logger.Info("🔄 Dispatching invites",
		zap.String("event_id", event.ID.String()),
		zap.Int("attendees", len(attendees)),
		zap.Int("workers", d.config.Workers))

	ledger := make(Ledger, len(attendees))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, d.config.Workers)

	record := func(de Delivery) {
		mu.Lock()
		ledger[de.UserID] = de
		mu.Unlock()
	}

	subject := "Invitation: " + event.Title

	for i := range attendees {
		attendee := attendees[i]

		// Anything past pending/failed already has a final answer on
		// record; count it as delivered and move on.
		if attendee.IsSent() || attendee.Status == entities.AttendeeStatusAccepted || attendee.Status == entities.AttendeeStatusDeclined {
			record(Delivery{UserID: attendee.UserID, Outcome: OutcomeSent})
			continue
		}

		if attendee.User == nil || attendee.User.Email == "" {
			reason := "attendee has no email address"
			if err := d.attendeeRepo.MarkFailed(ctx, attendee.EventID, attendee.UserID, reason); err != nil {
				d.logger.Error("❌ Failed to record delivery failure",
					zap.String("user_id", attendee.UserID.String()),
					zap.Error(err))
			}
			record(Delivery{UserID: attendee.UserID, Outcome: OutcomeFailed, Error: reason})
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(attendee entities.EventAttendee) {
			defer wg.Done()
			defer func() { <-semaphore }()
			record(d.deliver(ctx, &attendee, subject, body, attachment))
		}(attendee)
	}

	wg.Wait()

	d.logger.Info("✅ Invite dispatch finished",
		zap.String("event_id", event.ID.String()),
		zap.Int("failed", len(ledger.Failed())))
	return ledger
}

// deliver sends the invite to one attendee with retries and records the
// result in the attendee row. A cancelled context leaves the row pending
// so a later resend picks it up.
func (d *Dispatcher) deliver(ctx context.Context, attendee *entities.EventAttendee, subject, body string, attachment *Attachment) Delivery {
	attempts := 0

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
		defer cancel()

		err := d.mail.Send(attemptCtx, attendee.User.Email, subject, body, attachment)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(err)
		}

		d.logger.Warn("👷 Invite delivery attempt failed",
			zap.String("user_id", attendee.UserID.String()),
			zap.Int("attempt", attempts),
			zap.Error(err))
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.config.InitialBackoff
	bo.MaxInterval = d.config.MaxBackoff

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, d.config.MaxRetries), ctx))
	if err == nil {
		if markErr := d.attendeeRepo.MarkSent(ctx, attendee.EventID, attendee.UserID); markErr != nil {
			d.logger.Error("❌ Failed to record delivery",
				zap.String("user_id", attendee.UserID.String()),
				zap.Error(markErr))
		}
		return Delivery{UserID: attendee.UserID, Outcome: OutcomeSent, Attempts: attempts}
	}

	if ctx.Err() != nil {
		// Shutdown, not rejection: leave the row pending for the next run.
		return Delivery{UserID: attendee.UserID, Outcome: OutcomePending, Attempts: attempts, Error: ctx.Err().Error()}
	}

	reason := fmt.Sprintf("delivery failed after %d attempts: %v", attempts, err)
	if markErr := d.attendeeRepo.MarkFailed(ctx, attendee.EventID, attendee.UserID, reason); markErr != nil {
		d.logger.Error("❌ Failed to record delivery failure",
			zap.String("user_id", attendee.UserID.String()),
			zap.Error(markErr))
	}

	d.logger.Error("❌ Invite delivery failed",
		zap.String("user_id", attendee.UserID.String()),
		zap.Int("attempts", attempts),
		zap.Error(err))
	return Delivery{UserID: attendee.UserID, Outcome: OutcomeFailed, Attempts: attempts, Error: err.Error()}
}
