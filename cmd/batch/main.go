// Command batch runs a JSON array of simulation requests concurrently,
// one worker goroutine per request, up to a bounded pool size (spec §5:
// "course independence" — multiple independent requests may run in
// parallel, each owning its own immutable course and rider).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nick-riduck/bike-course-simulator/internal/kernel"
	"github.com/nick-riduck/bike-course-simulator/internal/presets"
)

func main() {
	workers := flag.Int("workers", 4, "maximum concurrent simulations")
	presetsDB := flag.String("presets-db", "", "sqlite store for memoizing results by request (empty disables the cache)")
	flag.Parse()

	var cache *presets.Service
	if *presetsDB != "" {
		var err error
		cache, err = presets.Open(*presetsDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "batch: opening presets db: %v\n", err)
			os.Exit(70)
		}
	}

	var (
		data []byte
		err  error
	)
	if args := flag.Args(); len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(64)
	}

	var requests []json.RawMessage
	if err := json.Unmarshal(data, &requests); err != nil {
		fmt.Fprintf(os.Stderr, "batch: expected a JSON array of requests: %v\n", err)
		os.Exit(64)
	}

	results := make([]json.RawMessage, len(requests))
	errs := make([]string, len(requests))

	sem := make(chan struct{}, *workers)
	var wg sync.WaitGroup
	ctx := context.Background()

	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req json.RawMessage) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := runOne(ctx, req, cache)
			if err != nil {
				errs[i] = err.Error()
				return
			}
			results[i] = out
		}(i, req)
	}
	wg.Wait()

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(map[string]any{"results": results, "errors": errs}); err != nil {
		fmt.Fprintf(os.Stderr, "batch: encode: %v\n", err)
		os.Exit(70)
	}
}

// runOne runs one request through the kernel, consulting cache first
// (when enabled) and memoizing a successful result under the request's
// content-addressed key so an identical request in a later batch skips
// the kernel entirely.
func runOne(ctx context.Context, req json.RawMessage, cache *presets.Service) (json.RawMessage, error) {
	var key string
	if cache != nil {
		key = presets.ResultCacheKey(req)
		if cached, ok, err := cache.CachedResult(key); err == nil && ok {
			return json.RawMessage(cached), nil
		}
	}

	out, err := kernel.RunJSON(ctx, req)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.StoreResult(key, out); err != nil {
			fmt.Fprintf(os.Stderr, "batch: caching result: %v\n", err)
		}
	}
	return json.RawMessage(out), nil
}
