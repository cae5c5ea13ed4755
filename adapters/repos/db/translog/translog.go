//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package translog is the append-only write ahead log of a shard. Records
// are msgpack encoded and length prefixed, spread over generation files
// named translog-<gen>.tlog.
package translog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/weaviate/bulkshard/entities/translog"
)

const headerSize = 4

var fileNameRe = regexp.MustCompile(`^translog-(\d+)\.tlog$`)

type Op uint8

const (
	OpIndex Op = iota + 1
	OpDelete
)

// Record is one write of a shard as it was applied
type Record struct {
	Op        Op     `msgpack:"op"`
	Type      string `msgpack:"type"`
	ID        string `msgpack:"id"`
	Version   int64  `msgpack:"version"`
	Source    []byte `msgpack:"source,omitempty"`
	Routing   string `msgpack:"routing,omitempty"`
	Parent    string `msgpack:"parent,omitempty"`
	Timestamp string `msgpack:"timestamp,omitempty"`
	TTL       int64  `msgpack:"ttl,omitempty"`
}

// Log appends records to the current generation and rolls over to a new
// one once it grows beyond the configured size
type Log struct {
	sync.Mutex
	dir     string
	maxSize int64
	logger  logrus.FieldLogger

	gen    int64
	file   *os.File
	writer *bufio.Writer
	offset int64
	// synced is the last location known to be on disk
	synced translog.Location
	last   translog.Location
}

// Open opens the log in dir. Writes continue in a fresh generation after
// the highest one found on disk.
func Open(dir string, maxSize int64, logger logrus.FieldLogger) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create translog dir %q", dir)
	}
	gens, err := Generations(dir)
	if err != nil {
		return nil, err
	}
	l := &Log{
		dir:     dir,
		maxSize: maxSize,
		logger:  logger.WithField("translog", dir),
	}
	next := int64(1)
	if len(gens) > 0 {
		next = gens[len(gens)-1] + 1
	}
	if err := l.openGeneration(next); err != nil {
		return nil, err
	}
	return l, nil
}

// Generations lists the generation numbers present in dir in ascending
// order
func Generations(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read translog dir %q", dir)
	}
	var gens []int64
	for _, e := range entries {
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		gen, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

func fileName(dir string, gen int64) string {
	return filepath.Join(dir, fmt.Sprintf("translog-%d.tlog", gen))
}

func (l *Log) openGeneration(gen int64) error {
	f, err := os.OpenFile(fileName(l.dir, gen), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open translog generation %d", gen)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "stat translog generation %d", gen)
	}
	l.gen = gen
	l.file = f
	l.writer = bufio.NewWriter(f)
	l.offset = info.Size()
	return nil
}

// Add appends rec and returns its location. The record is not durable
// until a Sync covering the location returns.
func (l *Log) Add(rec *Record) (translog.Location, error) {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return translog.Location{}, errors.Wrap(err, "encode translog record")
	}

	l.Lock()
	defer l.Unlock()

	if l.file == nil {
		return translog.Location{}, errors.New("translog is closed")
	}
	size := int64(headerSize + len(payload))
	if l.offset > 0 && l.offset+size > l.maxSize {
		if err := l.rollover(); err != nil {
			return translog.Location{}, err
		}
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := l.writer.Write(header[:]); err != nil {
		return translog.Location{}, errors.Wrap(err, "write translog header")
	}
	if _, err := l.writer.Write(payload); err != nil {
		return translog.Location{}, errors.Wrap(err, "write translog record")
	}

	loc := translog.Location{Generation: l.gen, Offset: l.offset, Size: int(size)}
	l.offset += size
	l.last = loc
	return loc, nil
}

// rollover makes the current generation durable and starts the next one
func (l *Log) rollover() error {
	if err := l.syncLocked(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return errors.Wrapf(err, "close translog generation %d", l.gen)
	}
	l.logger.WithField("generation", l.gen+1).Debug("translog rolled over")
	return l.openGeneration(l.gen + 1)
}

// Sync makes every record up to and including loc durable. Locations that
// are already durable return without touching the disk.
func (l *Log) Sync(loc translog.Location) error {
	l.Lock()
	defer l.Unlock()

	if !loc.IsSet() || (l.synced.IsSet() && !l.synced.Less(loc)) {
		return nil
	}
	return l.syncLocked()
}

// NeedsSync reports whether loc is not durable yet
func (l *Log) NeedsSync(loc translog.Location) bool {
	l.Lock()
	defer l.Unlock()
	return loc.IsSet() && (!l.synced.IsSet() || l.synced.Less(loc))
}

func (l *Log) syncLocked() error {
	if err := l.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush translog")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "fsync translog")
	}
	if l.last.IsSet() {
		l.synced = l.last
	}
	return nil
}

// Current is the generation records are appended to
func (l *Log) Current() int64 {
	l.Lock()
	defer l.Unlock()
	return l.gen
}

// TrimBefore removes all generations older than gen
func (l *Log) TrimBefore(gen int64) error {
	gens, err := Generations(l.dir)
	if err != nil {
		return err
	}
	for _, g := range gens {
		if g >= gen {
			continue
		}
		if err := os.Remove(fileName(l.dir, g)); err != nil {
			return errors.Wrapf(err, "remove translog generation %d", g)
		}
	}
	return nil
}

func (l *Log) Close() error {
	l.Lock()
	defer l.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.syncLocked()
	if cerr := l.file.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "close translog")
	}
	l.file = nil
	return err
}

// ReadGeneration decodes every record of generation gen in dir. A torn
// record at the tail, left behind by a crash, ends the generation.
func ReadGeneration(dir string, gen int64, fn func(loc translog.Location, rec *Record) error) error {
	f, err := os.Open(fileName(dir, gen))
	if err != nil {
		return errors.Wrapf(err, "open translog generation %d", gen)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64
	for {
		var header [headerSize]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return errors.Wrapf(err, "read translog generation %d", gen)
		}
		n := binary.BigEndian.Uint32(header[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return errors.Wrapf(err, "read translog generation %d", gen)
		}
		var rec Record
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return errors.Wrapf(err, "decode translog record at %d:%d", gen, offset)
		}
		size := int64(headerSize) + int64(n)
		if err := fn(translog.Location{Generation: gen, Offset: offset, Size: int(size)}, &rec); err != nil {
			return err
		}
		offset += size
	}
}
