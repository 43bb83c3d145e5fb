package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/cache"
	"main/internal/model"
	"main/internal/pipeline"
	"main/internal/pool"
	"main/internal/recorder"
	"main/internal/simd"
)

func main() {
	if err := run(); err != nil {
		log.Printf("replay: %v", err)
		os.Exit(1)
	}
}

func run() error {
	dirFlag := flag.String("dir", "", "journal directory")
	prefixFlag := flag.String("prefix", "journal", "journal file prefix")
	speedFlag := flag.Float64("speed", 0, "pacing multiple, 0 replays as fast as possible")
	depthFlag := flag.Int("depth", 64, "cleaning depth bound")
	verboseFlag := flag.Bool("v", false, "print every book")
	flag.Parse()

	if *dirFlag == "" {
		return errors.New("missing journal directory; use -dir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        *dirFlag,
		FilePrefix: *prefixFlag,
		Speed:      *speedFlag,
	})
	if err != nil {
		return err
	}

	books := pool.Books(64, *depthFlag)
	selector := pipeline.NewSelector(pipeline.SelectorConfig{})
	cleaner := pipeline.NewCleaner(pipeline.Config{MaxDepth: *depthFlag}, selector, simd.Detect())

	var (
		total    int
		rejected int
		start    = time.Now()
		perKey   = make(map[string]int)
	)
	err = playback.Run(ctx, func(header recorder.RecordHeader, payload []byte) error {
		if header.Kind != recorder.RecordBook {
			return nil
		}
		book := books.Get()
		defer books.Put(book)
		if err := cache.DecodeBook(payload, book); err != nil {
			return fmt.Errorf("decode record seq %d: %w", header.Seq, err)
		}

		total++
		perKey[book.Exchange+" "+book.Symbol.String()]++
		if err := cleaner.Clean(book); err != nil {
			rejected++
			if *verboseFlag {
				fmt.Printf("%s %s seq=%d rejected: %v\n",
					book.Exchange, book.Symbol.String(), book.Seq, err)
			}
			return nil
		}
		if *verboseFlag {
			printBook(book)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	elapsed := time.Since(start)
	fmt.Printf("replayed %d books in %s (%d rejected)\n", total, elapsed.Round(time.Millisecond), rejected)
	for key, count := range perKey {
		fmt.Printf("  %-24s %d\n", key, count)
	}
	return nil
}

func printBook(book *model.OrderBook) {
	bid, okB := book.BestBid()
	ask, okA := book.BestAsk()
	if !okB || !okA {
		fmt.Printf("%s %s seq=%d levels=%d/%d one-sided\n",
			book.Exchange, book.Symbol.String(), book.Seq, len(book.Bids), len(book.Asks))
		return
	}
	spread, _ := book.SpreadPct()
	fmt.Printf("%s %s seq=%d bid=%s ask=%s spread=%.4f%% levels=%d/%d\n",
		book.Exchange, book.Symbol.String(), book.Seq,
		bid.Price.String(), ask.Price.String(), spread,
		len(book.Bids), len(book.Asks))
}
