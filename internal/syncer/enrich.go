package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

// enrich fills member nicknames, cache-first, then bounded-concurrency
// lookups for the misses. Failed lookups leave the nickname unset and
// are cached as "no nickname" so they are not retried until the entry
// expires.
func (o *Orchestrator) enrich(ctx context.Context, orgName string, members []domain.Member) {
	cacheHits := 0
	var uncached []int
	for i := range members {
		if nickname, ok := o.cache.Get(members[i].Callsign); ok {
			members[i].Nickname = nickname
			cacheHits++
		} else {
			uncached = append(uncached, i)
		}
	}

	if len(uncached) == 0 {
		o.logger.Info().
			Str("org", orgName).
			Int("cache_hits", cacheHits).
			Msg("Enrichment complete, no lookups needed")
		return
	}

	o.logger.Info().
		Str("org", orgName).
		Int("cache_hits", cacheHits).
		Int("lookups", len(uncached)).
		Int("max_concurrent", o.maxConcurrent).
		Msg("Starting nickname lookups")

	// Bounded fan-out: a counting permit caps in-flight lookups and each
	// worker pauses briefly before its request
	semaphore := make(chan struct{}, o.maxConcurrent)
	results := make(map[string]*string, len(uncached))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, idx := range uncached {
		callsign := members[idx].Callsign
		wg.Add(1)
		go func(callsign string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			select {
			case <-ctx.Done():
				return
			case <-time.After(lookupDelay):
			}

			nickname, err := o.lookup.LookupNickname(ctx, callsign)
			if err != nil {
				o.logger.Warn().
					Str("org", orgName).
					Str("callsign", callsign).
					Err(err).
					Msg("Nickname lookup failed")
				nickname = nil
			}

			mu.Lock()
			results[callsign] = nickname
			mu.Unlock()
		}(callsign)
	}
	wg.Wait()

	newFound := 0
	for callsign, nickname := range results {
		o.cache.Insert(callsign, nickname)
		if nickname != nil {
			newFound++
		}
	}
	if err := o.cache.Save(); err != nil {
		o.logger.Warn().Str("org", orgName).Err(err).Msg("Failed to save nickname cache")
	}

	// Results are unordered; re-apply by callsign key
	for _, idx := range uncached {
		if nickname, ok := results[members[idx].Callsign]; ok {
			members[idx].Nickname = nickname
		}
	}

	o.logger.Info().
		Str("org", orgName).
		Int("cache_hits", cacheHits).
		Int("lookups", len(uncached)).
		Int("new_nicknames", newFound).
		Msg("Enrichment complete")
}
