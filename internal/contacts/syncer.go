package contacts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/summerlabs/notifai/internal/identity"
	"github.com/summerlabs/notifai/internal/store"
)

// looseMatchDigits is the minimum trailing-digit overlap for matching a
// contact number against a sender stored under a differently qualified key,
// the same loose comparison telephony dialers use.
const looseMatchDigits = 7

// Syncer applies contact-store changes to sender rows. It only ever touches
// contact-type senders (display names and canonical keys), never messages,
// so it can run concurrently with ingestion.
type Syncer struct {
	store  *store.Store
	region string
	logger *slog.Logger
}

// NewSyncer creates a Syncer for the given default region.
func NewSyncer(st *store.Store, region string) *Syncer {
	return &Syncer{
		store:  st,
		region: region,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger.
func (s *Syncer) WithLogger(logger *slog.Logger) *Syncer {
	s.logger = logger
	return s
}

// Resync applies the given contacts to existing sender rows: display names
// for senders already stored under the contact's canonical key, and a key
// rewrite for senders stuck under a stale key from a malformed device
// address. Returns the number of senders updated. Senders are never created
// here; they appear on first message.
func (s *Syncer) Resync(ctx context.Context, contactList []Contact) (int, error) {
	index, err := s.senderKeyIndex()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, c := range contactList {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		for _, phone := range c.Phones {
			key := identity.Normalize(phone, s.region)
			if key == "" {
				continue
			}
			ok, err := s.store.UpdateSenderDisplayName(key, c.FullName)
			if err != nil {
				return updated, err
			}
			if ok {
				updated++
				continue
			}
			n, err := s.resyncLoose(index, key, c.FullName)
			if err != nil {
				return updated, err
			}
			updated += n
		}
	}
	return updated, nil
}

// resyncLoose handles contact numbers with no sender under their canonical
// key. Senders whose stored key shares the trailing digits are either moved
// to the contact's key (stored key is the less qualified form) or renamed in
// place (stored key is the more qualified form).
func (s *Syncer) resyncLoose(index map[string][]string, key, displayName string) (int, error) {
	digits := strings.TrimPrefix(key, "+")
	if len(digits) < looseMatchDigits {
		return 0, nil
	}
	suffix := digits[len(digits)-looseMatchDigits:]

	updated := 0
	for _, stored := range index[suffix] {
		storedDigits := strings.TrimPrefix(stored, "+")
		var ok bool
		var err error
		switch {
		case len(storedDigits) <= len(digits) && strings.HasSuffix(digits, storedDigits):
			ok, err = s.store.ResyncSenderContact(stored, key, displayName)
		case strings.HasSuffix(storedDigits, digits):
			ok, err = s.store.UpdateSenderDisplayName(stored, displayName)
		}
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

// senderKeyIndex maps the trailing digits of each contact sender's stored key
// to the keys sharing them. Built once per resync pass; a key rewritten
// during the pass leaves a stale entry behind, which then matches zero rows.
func (s *Syncer) senderKeyIndex() (map[string][]string, error) {
	senders, err := s.store.ListContactSenders()
	if err != nil {
		return nil, err
	}
	index := make(map[string][]string)
	for _, sd := range senders {
		digits := strings.TrimPrefix(sd.NormalizedNumber, "+")
		if len(digits) < looseMatchDigits {
			continue
		}
		suffix := digits[len(digits)-looseMatchDigits:]
		index[suffix] = append(index[suffix], sd.NormalizedNumber)
	}
	return index, nil
}

// ResyncFile parses a vCard file and applies it.
func (s *Syncer) ResyncFile(ctx context.Context, path string) (int, error) {
	contactList, err := ParseVCardFile(path)
	if err != nil {
		return 0, err
	}
	updated, err := s.Resync(ctx, contactList)
	if err != nil {
		return updated, err
	}
	s.logger.Info("contacts resynced", "contacts", len(contactList), "senders_updated", updated)
	return updated, nil
}
