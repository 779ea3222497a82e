package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ticketPrefix namespaces registry keys inside the shared badger store
const ticketPrefix = "ticket:"

// Registry is the device-scheduler contract the reminder layer arms
// triggers against.
type Registry interface {
	// ScheduleTrigger arms (or replaces) the trigger stored under
	// identifier and returns its ticket id.
	ScheduleTrigger(identifier string, payload Payload, trigger Trigger) (string, error)
	// CancelTrigger removes the trigger stored under identifier.
	// Cancelling an identifier that is not armed is not an error.
	CancelTrigger(identifier string) error
	// ListTriggers returns every armed ticket.
	ListTriggers() ([]Ticket, error)
}

// BadgerRegistry persists armed tickets in BadgerDB, one key per
// identifier, so re-arming the same identifier replaces the old ticket
// in place.
type BadgerRegistry struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewBadgerRegistry creates a ticket registry on the given badger handle
func NewBadgerRegistry(db *badger.DB, logger *zap.Logger) *BadgerRegistry {
	return &BadgerRegistry{db: db, logger: logger, now: time.Now}
}

func ticketKey(identifier string) []byte {
	return []byte(ticketPrefix + identifier)
}

// ScheduleTrigger arms a trigger, computing its next fire instant
func (r *BadgerRegistry) ScheduleTrigger(identifier string, payload Payload, trigger Trigger) (string, error) {
	next, err := nextFire(trigger, r.now())
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTriggerArming, "NOTIFY_001", fmt.Sprintf("cannot arm %s: %v", identifier, err))
	}

	ticket := Ticket{
		ID:         uuid.New().String(),
		Identifier: identifier,
		Payload:    payload,
		Trigger:    trigger,
		NextFire:   next,
		CreatedAt:  r.now(),
	}

	data, err := json.Marshal(ticket)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTriggerArming, "NOTIFY_001", "failed to encode ticket")
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ticketKey(identifier), data)
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTriggerArming, "NOTIFY_001", fmt.Sprintf("failed to store ticket %s", identifier))
	}

	return ticket.ID, nil
}

// CancelTrigger removes one armed ticket by identifier
func (r *BadgerRegistry) CancelTrigger(identifier string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(ticketKey(identifier))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// ListTriggers returns every armed ticket
func (r *BadgerRegistry) ListTriggers() ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ticketPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var ticket Ticket
				if err := json.Unmarshal(val, &ticket); err != nil {
					// Skip undecodable tickets rather than failing the listing.
					r.logger.Warn("skipping corrupt ticket", zap.ByteString("key", it.Item().Key()))
					return nil
				}
				tickets = append(tickets, ticket)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return tickets, err
}

// CancelMatching removes every ticket whose payload satisfies match and
// returns how many were cancelled.
func (r *BadgerRegistry) CancelMatching(match func(Payload) bool) (int, error) {
	tickets, err := r.ListTriggers()
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, ticket := range tickets {
		if !match(ticket.Payload) {
			continue
		}
		if err := r.CancelTrigger(ticket.Identifier); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// Due returns the tickets whose next fire instant is at or before now
func (r *BadgerRegistry) Due(now time.Time) ([]Ticket, error) {
	tickets, err := r.ListTriggers()
	if err != nil {
		return nil, err
	}
	var due []Ticket
	for _, ticket := range tickets {
		if !ticket.NextFire.After(now) {
			due = append(due, ticket)
		}
	}
	return due, nil
}

// Complete acknowledges a fired ticket: repeating triggers are advanced
// to their next occurrence, one-off triggers are removed.
func (r *BadgerRegistry) Complete(ticket Ticket, now time.Time) error {
	if !ticket.Trigger.Repeats {
		return r.CancelTrigger(ticket.Identifier)
	}

	next, err := nextFire(ticket.Trigger, now)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTicketMissing, "NOTIFY_002", fmt.Sprintf("cannot advance ticket %s", ticket.Identifier))
	}
	ticket.NextFire = next

	data, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ticketKey(ticket.Identifier), data)
	})
}

// nextFire computes the first instant the trigger is due after now
func nextFire(trigger Trigger, now time.Time) (time.Time, error) {
	if trigger.At != nil {
		return *trigger.At, nil
	}
	schedule, err := cron.ParseStandard(trigger.CronSpec())
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now), nil
}
