package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/buffer"
	"main/internal/cache"
	"main/internal/model"
)

var (
	ErrQueueFull       = errors.New("journal queue full")
	ErrClosed          = errors.New("journal writer closed")
	ErrNotStarted      = errors.New("journal writer not started")
	ErrAlreadyStarted  = errors.New("journal writer already started")
	ErrPayloadTooLarge = errors.New("journal payload too large")
)

const maxPayloadLen = uint64(^uint32(0))

// Writer appends records to journal segments from a bounded ring queue.
// The producer encodes off its own copy, so appending never blocks on
// disk. The ring is single-producer: exactly one goroutine may call
// TryAppendBook.
type Writer struct {
	cfg   Config
	queue *buffer.Ring[recordRequest]
	wake  chan struct{}
	quit  chan struct{}
	wg    sync.WaitGroup
	err   atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates a journal writer and ensures the target directory
// exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg:   cfg,
		queue: buffer.NewRing[recordRequest](cfg.QueueSize),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.quit)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppendBook encodes book and enqueues it without blocking.
func (w *Writer) TryAppendBook(book *model.OrderBook) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}

	payload, err := cache.EncodeBook(nil, book)
	if err != nil {
		return err
	}
	req := recordRequest{
		header: RecordHeader{
			Kind:   RecordBook,
			Seq:    book.Seq,
			TsNano: book.TsNano,
		},
		payload: payload,
	}
	if !w.queue.Push(req) {
		return ErrQueueFull
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segmentWriter
		segID       uint64
		headerBuf   = make([]byte, recordHeaderSize)
		checksumBuf [4]byte
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := w.closeSegment(seg); err != nil && w.Err() == nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drainQueue(&seg, &segID, headerBuf, &checksumBuf)
			return
		case <-w.quit:
			w.drainQueue(&seg, &segID, headerBuf, &checksumBuf)
			return
		case <-w.wake:
			if !w.drainQueue(&seg, &segID, headerBuf, &checksumBuf) {
				return
			}
		case <-flushC:
			if err := w.flushSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := w.syncSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

// drainQueue pops every queued record and writes it, reporting false when
// a write failed and the loop must stop.
func (w *Writer) drainQueue(seg **segmentWriter, segID *uint64, headerBuf []byte, checksumBuf *[4]byte) bool {
	for {
		req, ok := w.queue.Pop()
		if !ok {
			return true
		}
		if err := w.writeRecord(seg, segID, headerBuf, checksumBuf, req); err != nil {
			w.setErr(err)
			return false
		}
	}
}

func (w *Writer) writeRecord(seg **segmentWriter, segID *uint64, headerBuf []byte, checksumBuf *[4]byte, req recordRequest) error {
	if uint64(len(req.payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}

	now := time.Now().UTC()
	recordSize := int64(recordHeaderSize + len(req.payload) + recordChecksumSize)
	if w.shouldRotate(*seg, now, recordSize) {
		if err := w.closeSegment(*seg); err != nil {
			return err
		}
		opened, err := w.openSegment(segID, now)
		if err != nil {
			return err
		}
		*seg = opened
	}

	encodeHeader(headerBuf, req.header, len(req.payload))
	sum := checksum(headerBuf, req.payload)
	binary.LittleEndian.PutUint32(checksumBuf[:], sum)

	if _, err := (*seg).buf.Write(headerBuf); err != nil {
		return err
	}
	if len(req.payload) > 0 {
		if _, err := (*seg).buf.Write(req.payload); err != nil {
			return err
		}
	}
	if _, err := (*seg).buf.Write(checksumBuf[:]); err != nil {
		return err
	}

	(*seg).size += recordSize
	return nil
}

func (w *Writer) shouldRotate(seg *segmentWriter, now time.Time, nextSize int64) bool {
	if seg == nil {
		return true
	}
	if w.cfg.SegmentMaxBytes > 0 && seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	if w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (w *Writer) flushSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	return seg.buf.Flush()
}

func (w *Writer) syncSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.file.Sync()
}

func (w *Writer) closeSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

func (w *Writer) openSegment(segID *uint64, now time.Time) (*segmentWriter, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ts := now.Format("20060102-150405")
	for {
		*segID = *segID + 1
		name := fmt.Sprintf("%s-%s-%06d.mdj", w.cfg.FilePrefix, ts, *segID)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		return &segmentWriter{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

type recordRequest struct {
	header  RecordHeader
	payload []byte
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}
