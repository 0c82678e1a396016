package core

// Store is the typed KV Store Facade (C1): a thin layer over a byte-keyed,
// ordered backend with atomic batch writes and prefix iteration. It is
// deliberately the only shared mutable state CRVM touches (spec.md §5);
// every other component reaches the world only through a Store handle
// passed into its constructor — there is no package-level store singleton.
//
// Two backends are provided: levelDBStore, the production implementation
// over github.com/syndtr/goleveldb (the corpus's idiomatic choice for an
// embedded, ordered, byte-keyed store in Bitcoin/Decred-lineage full nodes),
// and memStore, an in-memory implementation used by tests and by
// call-frame snapshots inside the VM.
//
// Block-disconnect support (spec.md §4.11) is implemented as a per-height
// inverse journal: every Batch.Commit(height) first snapshots the
// pre-write value of each touched key into the journal, then applies the
// batch. Rollback(height) replays that journal in reverse.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Iterator walks a byte-ordered key range.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Batch accumulates writes/erases for atomic application.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
}

// Store is the facade every CRVM component depends on.
type Store interface {
	Write(key, value []byte) error
	Read(key []byte) ([]byte, error)
	Exists(key []byte) (bool, error)
	Erase(key []byte) error

	NewBatch() Batch
	// Commit atomically applies batch, recording an inverse journal under
	// height so a later Rollback(height) can undo exactly these writes.
	Commit(batch Batch, height uint32) error
	// Rollback undoes every write committed under height, in reverse
	// order, and then clears that height's journal.
	Rollback(height uint32) error

	IterPrefix(prefix []byte) Iterator
	Close() error
}

// ---------------------------------------------------------------------
// Key layout (spec.md §4.1)
// ---------------------------------------------------------------------

func ContractKey(addr AddrId) []byte {
	return concat([]byte("contract_"), addr.Bytes())
}

func ContractStorageKey(contract AddrId, slot [32]byte) []byte {
	return concat([]byte("contract_"), contract.Bytes(), []byte("_storage_"), slot[:])
}

func TrustKey(from, to AddrId) []byte {
	return concat([]byte("trust_"), from.Bytes(), []byte("_"), to.Bytes())
}

func TrustInKey(to, from AddrId) []byte {
	return concat([]byte("trust_in_"), to.Bytes(), []byte("_"), from.Bytes())
}

func TrustPropKey(from, to AddrId) []byte {
	return concat([]byte("trust_prop_"), from.Bytes(), []byte("_"), to.Bytes())
}

func ClusterTrustKey(id AddrId) []byte {
	return concat([]byte("cluster_trust_"), id.Bytes())
}

func VoteKey(tx TxId) []byte {
	return concat([]byte("vote_"), tx.Bytes())
}

func VotesTargetKey(target AddrId, tx TxId) []byte {
	return concat([]byte("votes_"), target.Bytes(), []byte("_"), tx.Bytes())
}

func VotesTargetPrefix(target AddrId) []byte {
	return concat([]byte("votes_"), target.Bytes(), []byte("_"))
}

func DisputeKey(id TxId) []byte {
	return concat([]byte("dispute_"), id.Bytes())
}

func BehaviorKey(addr AddrId) []byte {
	return concat([]byte("behavior_"), addr.Bytes())
}

func QuantumKey(hash [32]byte) []byte {
	return concat([]byte("Q"), hash[:])
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ---------------------------------------------------------------------
// LevelDB-backed store
// ---------------------------------------------------------------------

type levelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if absent) a goleveldb database at path.
func OpenLevelDBStore(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open leveldb %s: %v", ErrBackend, path, err)
	}
	return &levelDBStore{db: db}, nil
}

func (s *levelDBStore) Write(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (s *levelDBStore) Read(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return v, nil
}

func (s *levelDBStore) Exists(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return ok, nil
}

func (s *levelDBStore) Erase(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

type ldbBatch struct{ b *leveldb.Batch }

func (s *levelDBStore) NewBatch() Batch { return &ldbBatch{b: new(leveldb.Batch)} }

func (b *ldbBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *ldbBatch) Delete(key []byte)     { b.b.Delete(key) }

func (s *levelDBStore) Commit(batch Batch, height uint32) error {
	lb, ok := batch.(*ldbBatch)
	if !ok {
		return fmt.Errorf("%w: foreign batch type", ErrBackend)
	}
	if err := s.recordJournal(lb.b, height); err != nil {
		return err
	}
	if err := s.db.Write(lb.b, nil); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBackend, err)
	}
	return nil
}

// recordJournal snapshots the pre-image of every key touched by b under a
// reserved journal prefix, so Rollback can restore it exactly.
func (s *levelDBStore) recordJournal(b *leveldb.Batch, height uint32) error {
	type op struct {
		key      []byte
		hadOld   bool
		oldValue []byte
	}
	var ops []op
	b.Replay(journalReplayer{
		put: func(key, _ []byte) {
			old, err := s.db.Get(key, nil)
			if err != nil {
				ops = append(ops, op{key: append([]byte(nil), key...), hadOld: false})
				return
			}
			ops = append(ops, op{key: append([]byte(nil), key...), hadOld: true, oldValue: append([]byte(nil), old...)})
		},
		del: func(key []byte) {
			old, err := s.db.Get(key, nil)
			if err != nil {
				ops = append(ops, op{key: append([]byte(nil), key...), hadOld: false})
				return
			}
			ops = append(ops, op{key: append([]byte(nil), key...), hadOld: true, oldValue: append([]byte(nil), old...)})
		},
	})

	jb := new(leveldb.Batch)
	for i, o := range ops {
		jb.Put(journalEntryKey(height, uint32(i)), encodeJournalEntry(o.key, o.hadOld, o.oldValue))
	}
	jb.Put(journalCountKey(height), encodeUint32(uint32(len(ops))))
	if err := s.db.Write(jb, nil); err != nil {
		return fmt.Errorf("%w: journal write: %v", ErrBackend, err)
	}
	return nil
}

type journalReplayer struct {
	put func(key, value []byte)
	del func(key []byte)
}

func (r journalReplayer) Put(key, value []byte) { r.put(key, value) }
func (r journalReplayer) Delete(key []byte)      { r.del(key) }

func (s *levelDBStore) Rollback(height uint32) error {
	countRaw, err := s.db.Get(journalCountKey(height), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil // nothing recorded at this height: no-op
		}
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	count := decodeUint32(countRaw)

	undo := new(leveldb.Batch)
	for i := int(count) - 1; i >= 0; i-- {
		raw, err := s.db.Get(journalEntryKey(height, uint32(i)), nil)
		if err != nil {
			logrus.Errorf("kvstore: missing journal entry %d at height %d during rollback", i, height)
			continue
		}
		key, hadOld, oldValue := decodeJournalEntry(raw)
		if hadOld {
			undo.Put(key, oldValue)
		} else {
			undo.Delete(key)
		}
		undo.Delete(journalEntryKey(height, uint32(i)))
	}
	undo.Delete(journalCountKey(height))
	if err := s.db.Write(undo, nil); err != nil {
		return fmt.Errorf("%w: rollback commit: %v", ErrBackend, err)
	}
	return nil
}

type ldbIterator struct {
	it iteratorI
}

// iteratorI narrows goleveldb's iterator to what we use, so tests can fake it.
type iteratorI interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

func (s *levelDBStore) IterPrefix(prefix []byte) Iterator {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &ldbIterator{it: it}
}

func (i *ldbIterator) Next() bool      { return i.it.Next() }
func (i *ldbIterator) Key() []byte     { return append([]byte(nil), i.it.Key()...) }
func (i *ldbIterator) Value() []byte   { return append([]byte(nil), i.it.Value()...) }
func (i *ldbIterator) Error() error {
	if err := i.it.Error(); err != nil && err != errors.ErrNotFound {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
func (i *ldbIterator) Close() error { i.it.Release(); return nil }

func (s *levelDBStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// journal encoding helpers — fixed-width, little-endian (spec.md §4.1)
// ---------------------------------------------------------------------

func journalEntryKey(height, seq uint32) []byte {
	k := make([]byte, 0, 9+8)
	k = append(k, "__journal__"...)
	k = binary.LittleEndian.AppendUint32(k, height)
	k = binary.LittleEndian.AppendUint32(k, seq)
	return k
}

func journalCountKey(height uint32) []byte {
	k := make([]byte, 0, 16)
	k = append(k, "__journal_count__"...)
	k = binary.LittleEndian.AppendUint32(k, height)
	return k
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func encodeJournalEntry(key []byte, hadOld bool, oldValue []byte) []byte {
	buf := make([]byte, 0, 9+len(key)+len(oldValue))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(key)))
	buf = append(buf, key...)
	if hadOld {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(oldValue)))
	buf = append(buf, oldValue...)
	return buf
}

func decodeJournalEntry(buf []byte) (key []byte, hadOld bool, oldValue []byte) {
	if len(buf) < 4 {
		return nil, false, nil
	}
	klen := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	if uint32(len(buf)) < klen+1 {
		return nil, false, nil
	}
	key = buf[:klen]
	buf = buf[klen:]
	hadOld = buf[0] == 1
	buf = buf[1:]
	if len(buf) < 4 {
		return key, hadOld, nil
	}
	vlen := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	if uint32(len(buf)) < vlen {
		return key, hadOld, nil
	}
	oldValue = buf[:vlen]
	return key, hadOld, oldValue
}

// ---------------------------------------------------------------------
// In-memory store — tests and intra-call VM snapshots.
// ---------------------------------------------------------------------

type memStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	journals map[uint32][]memJournalEntry
}

type memJournalEntry struct {
	key      []byte
	hadOld   bool
	oldValue []byte
}

// NewMemStore returns a Store backed by an in-memory map; IterPrefix sorts
// the matching keys on each call. Suitable for tests.
func NewMemStore() Store {
	return &memStore{data: make(map[string][]byte), journals: make(map[uint32][]memJournalEntry)}
}

func (s *memStore) Write(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), value...)
	s.data[string(key)] = cp
	return nil
}

func (s *memStore) Read(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *memStore) Exists(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *memStore) Erase(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct{ ops []memOp }

func (s *memStore) NewBatch() Batch { return &memBatch{} }

func (b *memBatch) Set(key, value []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}
func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
}

func (s *memStore) Commit(batch Batch, height uint32) error {
	mb, ok := batch.(*memBatch)
	if !ok {
		return fmt.Errorf("%w: foreign batch type", ErrBackend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []memJournalEntry
	for _, op := range mb.ops {
		old, had := s.data[string(op.key)]
		var oldCopy []byte
		if had {
			oldCopy = append([]byte(nil), old...)
		}
		entries = append(entries, memJournalEntry{key: op.key, hadOld: had, oldValue: oldCopy})
		if op.delete {
			delete(s.data, string(op.key))
		} else {
			s.data[string(op.key)] = op.value
		}
	}
	s.journals[height] = append(s.journals[height], entries...)
	return nil
}

func (s *memStore) Rollback(height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.journals[height]
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.hadOld {
			s.data[string(e.key)] = e.oldValue
		} else {
			delete(s.data, string(e.key))
		}
	}
	delete(s.journals, height)
	return nil
}

type memIterator struct {
	keys   []string
	values [][]byte
	idx    int
}

func (s *memStore) IterPrefix(prefix []byte) Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), s.data[k]...)
	}
	return &memIterator{keys: keys, values: values, idx: -1}
}

func (i *memIterator) Next() bool    { i.idx++; return i.idx < len(i.keys) }
func (i *memIterator) Key() []byte   { return []byte(i.keys[i.idx]) }
func (i *memIterator) Value() []byte { return i.values[i.idx] }
func (i *memIterator) Error() error  { return nil }
func (i *memIterator) Close() error  { return nil }

func (s *memStore) Close() error { return nil }
