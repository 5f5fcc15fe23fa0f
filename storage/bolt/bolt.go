// Package bolt is a Storage for run records backed by BoltDB.
//
// Each flowchart gets a bucket.  Each run record is a JSON value
// keyed by its run id.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Comcast/flowcmd/storage"

	bolt "go.etcd.io/bbolt"
)

func JS(x interface{}) string {
	js, err := json.Marshal(&x)
	if err != nil {
		panic(err)
	}
	return string(js)
}

type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db == nil {
		return NotOpen
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("BoltDB Storage."+format, args...)
	}
}

// NotOpen is returned by Close when there's nothing to close.
var NotOpen = errors.New("not open")

func (s *Storage) MakeFlowchart(ctx context.Context, fid string) error {
	s.logf("MakeFlowchart %s", fid)
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(fid))
		return err
	})
}

func (s *Storage) RemFlowchart(ctx context.Context, fid string) error {
	s.logf("RemFlowchart %s", fid)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(fid))
	})
}

func (s *Storage) GetRuns(ctx context.Context, fid string) ([]*storage.RunRecord, error) {
	s.logf("GetRuns %s", fid)
	rs := make([]*storage.RunRecord, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(fid))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var r storage.RunRecord
			if err := json.Unmarshal(bs, &r); err != nil {
				return err
			}
			r.Rid = string(id)
			s.logf("GetRuns %s run %s", fid, JS(r))
			rs = append(rs, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("GetRuns %s found %d runs", fid, len(rs))

	if len(rs) == 0 {
		return nil, nil
	}

	return rs, nil
}

func (s *Storage) WriteRuns(ctx context.Context, fid string, rs []*storage.RunRecord) error {
	s.logf("WriteRuns %s %s", fid, JS(rs))

	if 0 == len(rs) {
		return nil
	}

	vals := make(map[string][]byte, len(rs))

	for _, r := range rs {
		id := r.Rid
		if r.Deleted {
			vals[id] = nil
		} else {
			// The key is the id.
			r := *r
			r.Rid = ""
			js, err := json.Marshal(&r)
			if err != nil {
				return err
			}
			vals[id] = js
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(fid))
		if err != nil {
			return err
		}
		for id, bs := range vals {
			var (
				key = []byte(id)
				err error
			)
			if bs == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, bs)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// NextId generates a run id that sorts after the flowchart's existing
// ids.
func (s *Storage) NextId(ctx context.Context, fid string) (string, error) {
	var id string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(fid))
		if err != nil {
			return err
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = fmt.Sprintf("%010d", n)
		return nil
	})
	return id, err
}
