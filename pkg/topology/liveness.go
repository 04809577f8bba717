package topology

import (
	"encoding/binary"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

var bucketLastContact = []byte("last_contact")

// LivenessStore persists last-contact timestamps to a local bbolt file,
// alongside the last_contact column the SQLite store keeps. The manager
// writes a record on registration and heartbeat and deletes it when a
// client is reaped; nothing reads the records back at startup, so the
// liveness tick after a restart works from the SQLite timestamps alone.
type LivenessStore struct {
	db *bolt.DB
}

// OpenLivenessStore opens or creates the bbolt file at path.
func OpenLivenessStore(path string) (*LivenessStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "open liveness store", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLastContact)
		return err
	})
	if err != nil {
		db.Close()
		return nil, mgmterr.Wrap(mgmterr.KindIO, "create liveness bucket", err)
	}
	return &LivenessStore{db: db}, nil
}

// Close releases the underlying file lock.
func (l *LivenessStore) Close() error {
	return l.db.Close()
}

// Touch records that uid was seen alive at t.
func (l *LivenessStore) Touch(uid int64, t time.Time) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLastContact)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(t.Unix()))
		return b.Put(uidKey(uid), buf[:])
	})
}

// LastContact returns the last recorded contact time for uid, or the
// zero time if nothing has been recorded.
func (l *LivenessStore) LastContact(uid int64) (time.Time, error) {
	var t time.Time
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLastContact)
		v := b.Get(uidKey(uid))
		if v == nil {
			return nil
		}
		t = time.Unix(int64(binary.BigEndian.Uint64(v)), 0).UTC()
		return nil
	})
	return t, err
}

// Forget drops a node's persisted last-contact record, called on removal
// so a reused UID never inherits a stale timestamp.
func (l *LivenessStore) Forget(uid int64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLastContact).Delete(uidKey(uid))
	})
}

func uidKey(uid int64) []byte {
	return []byte(strconv.FormatInt(uid, 10))
}
