// Package state persists the canonical books across restarts: a snapshot
// file on shutdown, plus a journal tail replay on startup so books written
// after the snapshot are not lost.
package state

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/cache"
	"main/internal/model"
	"main/internal/pool"
)

const snapshotVersion uint16 = 1

var snapshotMagic = [4]byte{'M', 'D', 'S', '1'}

var (
	ErrInvalidSnapshot = errors.New("state snapshot corrupted")
)

// WriteSnapshot writes all books to path atomically (tmp file + rename).
// Books are sorted by key so identical state produces identical files.
func WriteSnapshot(path string, books map[cache.Key]*model.OrderBook) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	keys := make([]cache.Key, 0, len(books))
	for key := range books {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	buf := make([]byte, 0, 14)
	buf = append(buf, snapshotMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, snapshotVersion)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(time.Now().UTC().UnixNano()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys)))
	for _, key := range keys {
		encoded, err := cache.EncodeBook(nil, books[key])
		if err != nil {
			return err
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
		buf = append(buf, encoded...)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads books from path into pooled instances. The caller
// owns the returned books.
func ReadSnapshot(path string, books *pool.Pool[model.OrderBook]) ([]*model.OrderBook, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header := make([]byte, 18)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, ErrInvalidSnapshot
	}
	if string(header[0:4]) != string(snapshotMagic[:]) {
		return nil, ErrInvalidSnapshot
	}
	if binary.LittleEndian.Uint16(header[4:6]) != snapshotVersion {
		return nil, ErrInvalidSnapshot
	}
	count := binary.LittleEndian.Uint32(header[14:18])

	out := make([]*model.OrderBook, 0, count)
	release := func() {
		for _, book := range out {
			books.Put(book)
		}
	}
	sizeBuf := make([]byte, 4)
	var payload []byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(file, sizeBuf); err != nil {
			release()
			return nil, ErrInvalidSnapshot
		}
		size := binary.LittleEndian.Uint32(sizeBuf)
		if cap(payload) < int(size) {
			payload = make([]byte, size)
		}
		payload = payload[:size]
		if _, err := io.ReadFull(file, payload); err != nil {
			release()
			return nil, ErrInvalidSnapshot
		}
		book := books.Get()
		if err := cache.DecodeBook(payload, book); err != nil {
			books.Put(book)
			release()
			return nil, err
		}
		out = append(out, book)
	}
	return out, nil
}
