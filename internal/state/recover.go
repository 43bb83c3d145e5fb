package state

import (
	"context"
	"errors"
	"os"

	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/model"
	"main/internal/pool"
	"main/internal/recorder"
)

// RecoverConfig controls snapshot + journal recovery.
type RecoverConfig struct {
	SnapshotPath string
	JournalDir   string
	FilePrefix   string
}

// RecoverResult holds the rebuilt canonical books keyed by (exchange,
// symbol). The caller owns every book in the map.
type RecoverResult struct {
	Books       map[cache.Key]*model.OrderBook
	FromJournal int
}

// Recover loads the snapshot, then replays the journal and keeps any book
// newer than the snapshot copy. Missing files are a clean cold start.
func Recover(ctx context.Context, cfg RecoverConfig, books *pool.Pool[model.OrderBook]) (RecoverResult, error) {
	result := RecoverResult{Books: make(map[cache.Key]*model.OrderBook)}

	if cfg.SnapshotPath != "" {
		loaded, err := ReadSnapshot(cfg.SnapshotPath, books)
		switch {
		case err == nil:
			for _, book := range loaded {
				key := cache.Key{Exchange: book.Exchange, Symbol: book.Symbol}
				if prev, ok := result.Books[key]; ok {
					books.Put(prev)
				}
				result.Books[key] = book
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return RecoverResult{}, err
		}
	}

	if cfg.JournalDir == "" {
		return result, nil
	}
	if _, err := os.Stat(cfg.JournalDir); errors.Is(err, os.ErrNotExist) {
		return result, nil
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        cfg.JournalDir,
		FilePrefix: cfg.FilePrefix,
		Speed:      0,
	})
	if err != nil {
		releaseAll(result.Books, books)
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header recorder.RecordHeader, payload []byte) error {
		if header.Kind != recorder.RecordBook {
			return nil
		}
		book := books.Get()
		if err := cache.DecodeBook(payload, book); err != nil {
			books.Put(book)
			// a torn tail record ends recovery, everything before it
			// already applied
			logs.Errorf("journal tail decode, err: %+v", err)
			return nil
		}
		key := cache.Key{Exchange: book.Exchange, Symbol: book.Symbol}
		if prev, ok := result.Books[key]; ok {
			if prev.TsNano >= book.TsNano {
				books.Put(book)
				return nil
			}
			books.Put(prev)
		}
		result.Books[key] = book
		result.FromJournal++
		return nil
	})
	if err != nil {
		releaseAll(result.Books, books)
		return RecoverResult{}, err
	}
	return result, nil
}

func releaseAll(m map[cache.Key]*model.OrderBook, books *pool.Pool[model.OrderBook]) {
	for _, book := range m {
		books.Put(book)
	}
}
