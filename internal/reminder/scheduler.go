package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
)

const (
	// MaxReminders caps how many times a single record may be nudged.
	MaxReminders = 3

	DefaultSendDelay = 500 * time.Millisecond
)

var (
	ErrRecovered = errors.New("record already recovered")
	ErrNoEmail   = errors.New("record has no email")
	ErrCapped    = errors.New("reminder cap reached")

	// ErrCounterNotUpdated reports a reminder that was delivered but whose
	// counter increment failed. The recipient got the email; the record still
	// looks unreminded and will be picked up again, so callers must surface
	// this rather than treat the send as clean.
	ErrCounterNotUpdated = errors.New("reminder delivered but counter update failed")
)

// RecordSource is the slice of the mirror repository the scheduler needs.
type RecordSource interface {
	ListUnreminded(ctx context.Context) ([]domain.AbandonedCartRecord, error)
	RecordReminder(ctx context.Context, key string) error
}

type BulkResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Scheduler drives reminder sends against the open record set. Counters move
// only after the collaborator confirms delivery; a failed send leaves the
// record untouched so the next batch picks it up again.
type Scheduler struct {
	records   RecordSource
	notifier  Notifier
	sendDelay time.Duration
}

func NewScheduler(records RecordSource, notifier Notifier, sendDelay time.Duration) *Scheduler {
	if sendDelay <= 0 {
		sendDelay = DefaultSendDelay
	}
	return &Scheduler{
		records:   records,
		notifier:  notifier,
		sendDelay: sendDelay,
	}
}

// SendReminder delivers one reminder for the record. Recovered, email-less
// and capped records are rejected with no state change.
func (s *Scheduler) SendReminder(ctx context.Context, record *domain.AbandonedCartRecord) error {
	if record.Recovered {
		return ErrRecovered
	}
	if record.Email == "" {
		return ErrNoEmail
	}
	if record.RemindersSent >= MaxReminders {
		return ErrCapped
	}

	err := s.notifier.SendReminder(ctx, Notification{
		RecordID:       record.RecordID,
		Email:          record.Email,
		Items:          record.Items,
		Total:          record.Total,
		ReminderNumber: record.RemindersSent + 1,
	})
	if err != nil {
		// No silent retry; the caller decides. Counters stay put.
		return err
	}

	if errMark := s.records.RecordReminder(ctx, record.RecordID); errMark != nil {
		return fmt.Errorf("%w for %s: %v", ErrCounterNotUpdated, record.RecordID, errMark)
	}
	return nil
}

// SendBulk sends a first reminder to every record that has an email and none
// sent yet. Records are processed sequentially with a fixed delay between
// sends; one failure does not abort the rest.
func (s *Scheduler) SendBulk(ctx context.Context) (BulkResult, error) {
	var result BulkResult

	records, err := s.records.ListUnreminded(ctx)
	if err != nil {
		return result, err
	}

	for i := range records {
		if i > 0 {
			select {
			case <-time.After(s.sendDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		errSend := s.SendReminder(ctx, &records[i])
		switch {
		case errSend == nil:
			result.Sent++
		case errors.Is(errSend, ErrCounterNotUpdated):
			// Delivered; only the bookkeeping failed.
			log.Printf("%v", errSend)
			result.Sent++
		default:
			log.Printf("failed to send reminder for %s: %v", records[i].RecordID, errSend)
			result.Failed++
		}
	}

	return result, nil
}
