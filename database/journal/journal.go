// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package journal keeps an append-only record of governance events in
// badger
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/fundgov/event"
)

const (
	journalDir = "journal"
	gcInterval = 5 * time.Minute
)

var (
	keyPrefix = []byte("evt")

	ErrClosed       = errors.New("journal is closed")
	ErrUnknownEvent = errors.New("unknown event type")
)

// Record is one journal entry. Payload holds the CBOR encoding of the event
// data
type Record struct {
	_         struct{} `cbor:",toarray"`
	Seq       uint64
	Type      event.EventType
	Timestamp int64
	Payload   cbor.RawMessage
}

// Event decodes the record back into a bus event
func (r Record) Event() (event.Event, error) {
	payload := event.NewPayload(r.Type)
	if payload == nil {
		return event.Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, r.Type)
	}
	if err := cbor.Unmarshal(r.Payload, payload); err != nil {
		return event.Event{}, fmt.Errorf("decode %s payload: %w", r.Type, err)
	}
	return event.Event{
		Type:      r.Type,
		Timestamp: time.Unix(0, r.Timestamp),
		Data:      reflect.ValueOf(payload).Elem().Interface(),
	}, nil
}

type Journal struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	metrics      journalMetrics
	gcTicker     *time.Ticker
	gcStopCh     chan struct{}
	dataDir      string
	gcWg         sync.WaitGroup
	seq          uint64
	mu           sync.Mutex
	gcEnabled    bool
	closed       bool
}

// New opens the journal and resumes numbering after its last record
func New(opts ...JournalOptionFunc) (*Journal, error) {
	j := &Journal{
		// Enable GC by default for disk-backed journals
		gcEnabled: true,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		j.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	j.logger = j.logger.With("component", "journal")
	var badgerOpts badger.Options
	if j.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(j.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
		j.gcEnabled = false
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(j.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(j.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(j.dataDir, journalDir)).
			WithLogger(NewBadgerLogger(j.logger)).
			WithLoggingLevel(badger.WARNING).
			WithCompression(options.Snappy)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j.db = db
	if err := j.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	j.metrics.init(j.promRegistry)
	seq, err := j.lastSeq()
	if err != nil {
		return fmt.Errorf("read journal tail: %w", err)
	}
	j.seq = seq
	j.metrics.lastSequence.Set(float64(seq))
	if j.gcEnabled {
		j.gcTicker = time.NewTicker(gcInterval)
		j.gcStopCh = make(chan struct{})
		j.gcWg.Add(1)
		go j.valueLogGc(j.gcTicker, j.gcStopCh)
	}
	return nil
}

func (j *Journal) lastSeq() (uint64, error) {
	var seq uint64
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:  keyPrefix,
			Reverse: true,
		})
		defer it.Close()
		// seek past the largest possible key under the prefix
		it.Seek(recordKey(^uint64(0)))
		if it.ValidForPrefix(keyPrefix) {
			seq = binary.BigEndian.Uint64(it.Item().Key()[len(keyPrefix):])
		}
		return nil
	})
	return seq, err
}

func (j *Journal) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer j.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := j.db.RunValueLogGC(0.5)
				if err == nil {
					// Run it again if it just ran successfully
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					j.logger.Warn(fmt.Sprintf("GC failure: %s", err))
				}
				break
			}
		case <-stop:
			return
		}
	}
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

// Append writes an event as the next record and returns its sequence number
func (j *Journal) Append(evt event.Event) (uint64, error) {
	payload, err := cbor.Marshal(evt.Data)
	if err != nil {
		j.metrics.appendErrors.Inc()
		return 0, fmt.Errorf("encode %s payload: %w", evt.Type, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	rec := Record{
		Seq:       j.seq + 1,
		Type:      evt.Type,
		Timestamp: evt.Timestamp.UnixNano(),
		Payload:   payload,
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		j.metrics.appendErrors.Inc()
		return 0, fmt.Errorf("encode record: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Seq), data)
	})
	if err != nil {
		j.metrics.appendErrors.Inc()
		return 0, fmt.Errorf("write record %d: %w", rec.Seq, err)
	}
	j.seq = rec.Seq
	j.metrics.records.WithLabelValues(string(evt.Type)).Inc()
	j.metrics.lastSequence.Set(float64(rec.Seq))
	return rec.Seq, nil
}

// Iterate calls fn for every record with a sequence number of at least from,
// in order. Returning an error from fn stops the iteration
func (j *Journal) Iterate(from uint64, fn func(Record) error) error {
	j.mu.Lock()
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         keyPrefix,
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()
		for it.Seek(recordKey(from)); it.ValidForPrefix(keyPrefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := cbor.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf(
					"decode record %x: %w",
					it.Item().Key(),
					err,
				)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Events returns the decoded events of every record from the given sequence
// number on
func (j *Journal) Events(from uint64) ([]event.Event, error) {
	var ret []event.Event
	err := j.Iterate(from, func(rec Record) error {
		evt, err := rec.Event()
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		ret = append(ret, evt)
		return nil
	})
	return ret, err
}

// Len returns the number of records in the journal
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Subscribe registers the journal on the bus for every governance and
// election event type
func (j *Journal) Subscribe(bus *event.EventBus) []event.EventSubscriberId {
	types := event.GovernanceEventTypes()
	ret := make([]event.EventSubscriberId, 0, len(types))
	for _, eventType := range types {
		ret = append(ret, bus.RegisterSubscriber(eventType, &subscriber{journal: j}))
	}
	return ret
}

// subscriber adapts the journal to the bus. Closing it only detaches it from
// the bus, the journal itself stays open
type subscriber struct {
	journal *Journal
}

// Deliver never reports an error to the bus, since the bus would drop the
// subscription and stop journaling the event type. Failures are logged and
// counted in fundgov_journal_append_errors_total
func (s *subscriber) Deliver(evt event.Event) error {
	if _, err := s.journal.Append(evt); err != nil {
		s.journal.logger.Error(
			"failed to journal event",
			"type", evt.Type,
			"error", err,
		)
	}
	return nil
}

func (s *subscriber) Close() {}

// Close stops value log GC and closes the database. It is safe to call more
// than once
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()
	if j.gcTicker != nil {
		j.gcTicker.Stop()
		close(j.gcStopCh)
		// Wait for GC goroutine to finish
		j.gcWg.Wait()
	}
	return j.db.Close()
}
