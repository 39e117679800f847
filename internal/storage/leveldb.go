package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	apperrors "github.com/anchor-indexer/internal/errors"
)

// keyspace prefixes of the embedded store
const (
	prefixValue    = 'v' // key -> scalar or encoded object
	prefixMember   = 's' // set key, member -> sequence
	prefixOrder    = 'o' // set key, sequence -> member
	prefixSequence = 'n' // set key -> last sequence handed out
	prefixTx       = 'x' // index key, timestamp, tx id, sequence -> empty
	prefixTxCount  = 'c' // index key -> entry count
)

const separator = 0x00

// LevelDBDriver stores everything in a single goleveldb database.
// Composite updates run under one mutex and commit as a single batch.
type LevelDBDriver struct {
	sync.Mutex
	db        *leveldb.DB
	namespace string
}

// OpenLevelDBDriver opens (or creates) the database at path
func OpenLevelDBDriver(path string, namespace string) (*LevelDBDriver, error) {
	db, err := leveldb.OpenFile(path, &ldb_opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, apperrors.NewBackendError("open", err)
	}
	return &LevelDBDriver{db: db, namespace: namespace}, nil
}

// OpenMemLevelDBDriver opens a database kept entirely in memory
func OpenMemLevelDBDriver(namespace string) (*LevelDBDriver, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if err != nil {
		return nil, apperrors.NewBackendError("open", err)
	}
	return &LevelDBDriver{db: db, namespace: namespace}, nil
}

func dbKey(prefix byte, key string, suffix ...[]byte) []byte {
	size := 1 + len(key)
	for _, s := range suffix {
		size += 1 + len(s)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, prefix)
	buf = append(buf, key...)
	for _, s := range suffix {
		buf = append(buf, separator)
		buf = append(buf, s...)
	}
	return buf
}

func uint64Bytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// timestampBytes flips the sign bit so negative timestamps sort before positive ones
func timestampBytes(ts int64) []byte {
	return uint64Bytes(uint64(ts) ^ (1 << 63))
}

func (d *LevelDBDriver) wrap(op string, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, leveldb.ErrNotFound) {
		return apperrors.NewNotFoundError(key)
	}
	return apperrors.NewBackendError(op, err)
}

func (d *LevelDBDriver) get(op string, k []byte, key string) ([]byte, error) {
	data, err := d.db.Get(k, nil)
	if err != nil {
		return nil, d.wrap(op, key, err)
	}
	return data, nil
}

func (d *LevelDBDriver) readUint64(k []byte) (uint64, error) {
	data, err := d.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.New("corrupt counter")
	}
	return binary.BigEndian.Uint64(data), nil
}

func (d *LevelDBDriver) GetValue(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := d.get("get", dbKey(prefixValue, key), key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *LevelDBDriver) GetValues(ctx context.Context, keys []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := d.db.GetSnapshot()
	if err != nil {
		return nil, d.wrap("mget", "", err)
	}
	defer snap.Release()

	values := make([]string, len(keys))
	for i, key := range keys {
		data, err := snap.Get(dbKey(prefixValue, key), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, d.wrap("mget", key, err)
		}
		values[i] = string(data)
	}
	return values, nil
}

func (d *LevelDBDriver) SetValue(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.wrap("set", key, d.db.Put(dbKey(prefixValue, key), []byte(value), nil))
}

func (d *LevelDBDriver) DelValue(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.wrap("del", key, d.db.Delete(dbKey(prefixValue, key), nil))
}

func (d *LevelDBDriver) IncrValue(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.Lock()
	defer d.Unlock()

	k := dbKey(prefixValue, key)
	var current int64
	data, err := d.db.Get(k, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return 0, d.wrap("incr", key, err)
	default:
		current, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return 0, apperrors.NewValidationError(key, "value is not an integer")
		}
	}

	current++
	if err := d.db.Put(k, []byte(strconv.FormatInt(current, 10)), nil); err != nil {
		return 0, d.wrap("incr", key, err)
	}
	return current, nil
}

func (d *LevelDBDriver) GetObject(ctx context.Context, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := d.get("get", dbKey(prefixValue, key), key)
	if err != nil {
		return err
	}
	return decodeObject(key, data, out)
}

func (d *LevelDBDriver) SetObject(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeObject(key, value)
	if err != nil {
		return err
	}
	return d.wrap("set", key, d.db.Put(dbKey(prefixValue, key), data, nil))
}

func (d *LevelDBDriver) AddObject(ctx context.Context, key string, value interface{}) error {
	return d.SetObject(ctx, key, value)
}

func (d *LevelDBDriver) SAdd(ctx context.Context, key string, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Lock()
	defer d.Unlock()

	memberKey := dbKey(prefixMember, key, []byte(member))
	found, err := d.db.Has(memberKey, nil)
	if err != nil {
		return d.wrap("sadd", key, err)
	}
	if found {
		return nil
	}

	seqKey := dbKey(prefixSequence, key)
	last, err := d.readUint64(seqKey)
	if err != nil {
		return d.wrap("sadd", key, err)
	}
	seq := uint64Bytes(last + 1)

	batch := new(leveldb.Batch)
	batch.Put(memberKey, seq)
	batch.Put(dbKey(prefixOrder, key, seq), []byte(member))
	batch.Put(seqKey, seq)
	return d.wrap("sadd", key, d.db.Write(batch, nil))
}

func (d *LevelDBDriver) SRem(ctx context.Context, key string, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Lock()
	defer d.Unlock()

	memberKey := dbKey(prefixMember, key, []byte(member))
	seq, err := d.db.Get(memberKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}
	if err != nil {
		return d.wrap("srem", key, err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(memberKey)
	batch.Delete(dbKey(prefixOrder, key, seq))
	return d.wrap("srem", key, d.db.Write(batch, nil))
}

func (d *LevelDBDriver) GetArray(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter := d.db.NewIterator(ldb_util.BytesPrefix(dbKey(prefixOrder, key, nil)), nil)
	defer iter.Release()

	members := []string{}
	for iter.Next() {
		members = append(members, string(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, d.wrap("getarray", key, err)
	}
	return members, nil
}

func (d *LevelDBDriver) IndexTx(ctx context.Context, txType string, address string, txID string, timestamp int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := txIndexKey(d.namespace, txType, address)
	countKey := dbKey(prefixTxCount, key)

	d.Lock()
	defer d.Unlock()

	count, err := d.readUint64(countKey)
	if err != nil {
		return d.wrap("indextx", key, err)
	}
	seq := uint64Bytes(count + 1)

	entry := make([]byte, 0, 8+len(txID)+1+8)
	entry = append(entry, timestampBytes(timestamp)...)
	entry = append(entry, txID...)
	entry = append(entry, txSeqSeparator)
	entry = append(entry, seq...)

	batch := new(leveldb.Batch)
	batch.Put(dbKey(prefixTx, key, entry), nil)
	batch.Put(countKey, seq)
	return d.wrap("indextx", key, d.db.Write(batch, nil))
}

func (d *LevelDBDriver) GetTx(ctx context.Context, txType string, address string, limit int, offset int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start, stop, ok := pageBounds(limit, offset)
	if !ok {
		return []string{}, nil
	}

	key := txIndexKey(d.namespace, txType, address)
	prefix := dbKey(prefixTx, key, nil)
	iter := d.db.NewIterator(ldb_util.BytesPrefix(prefix), nil)
	defer iter.Release()

	ids := []string{}
	for pos := int64(0); pos <= stop && iter.Next(); pos++ {
		if pos < start {
			continue
		}
		// prefix, 8 byte timestamp, tx id, separator, 8 byte sequence
		k := iter.Key()
		ids = append(ids, string(k[len(prefix)+8:len(k)-9]))
	}
	if err := iter.Error(); err != nil {
		return nil, d.wrap("gettx", key, err)
	}
	return ids, nil
}

func (d *LevelDBDriver) CountTx(ctx context.Context, txType string, address string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := txIndexKey(d.namespace, txType, address)
	count, err := d.readUint64(dbKey(prefixTxCount, key))
	if err != nil {
		return 0, d.wrap("counttx", key, err)
	}
	return int64(count), nil
}

// Ping fails once the database has been closed
func (d *LevelDBDriver) Ping(ctx context.Context) error {
	_, err := d.db.GetProperty("leveldb.num-files-at-level0")
	return d.wrap("ping", "", err)
}

func (d *LevelDBDriver) Close() error {
	return d.db.Close()
}
