package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

type mapLookup struct {
	nicknames map[string]string
	failing   map[string]bool
	calls     int32
}

func (l *mapLookup) LookupNickname(ctx context.Context, callsign string) (*string, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.failing[callsign] {
		return nil, fmt.Errorf("lookup failed for %s", callsign)
	}
	if nickname, ok := l.nicknames[callsign]; ok {
		return &nickname, nil
	}
	return nil, nil
}

// countingLookup tracks the peak number of in-flight lookups
type countingLookup struct {
	inFlight int32
	peak     int32
}

func (l *countingLookup) LookupNickname(ctx context.Context, callsign string) (*string, error) {
	current := atomic.AddInt32(&l.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&l.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&l.peak, peak, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&l.inFlight, -1)
	return nil, nil
}

func TestEnrichAppliesCacheAndLookupResults(t *testing.T) {
	lookup := &mapLookup{
		nicknames: map[string]string{"W6JSV": "Jay"},
		failing:   map[string]bool{"WN7JT": true},
	}

	o := testOrchestrator(testConfig(), &recorder{}, nil)
	o.lookup = lookup
	o.cache = newTestCache(t)
	o.cache.Insert("K4MW", strPtr("Mike"))

	members := []domain.Member{
		{Callsign: "K4MW", MemberID: "1"},
		{Callsign: "W6JSV", MemberID: "10"},
		{Callsign: "WN7JT", MemberID: "2"},
		{Callsign: "N0CALL", MemberID: "3"},
	}

	o.enrich(context.Background(), "test", members)

	require.NotNil(t, members[0].Nickname)
	assert.Equal(t, "Mike", *members[0].Nickname)
	require.NotNil(t, members[1].Nickname)
	assert.Equal(t, "Jay", *members[1].Nickname)

	// Failed lookup leaves the member without a nickname and does not
	// abort the rest of the batch
	assert.Nil(t, members[2].Nickname)
	assert.Nil(t, members[3].Nickname)

	// Cached member was not looked up again
	assert.Equal(t, int32(3), lookup.calls)

	// All lookup results landed in the cache, including the misses
	nickname, ok := o.cache.Get("W6JSV")
	require.True(t, ok)
	assert.Equal(t, "Jay", *nickname)

	nickname, ok = o.cache.Get("N0CALL")
	require.True(t, ok)
	assert.Nil(t, nickname)
}

func TestEnrichSkipsLookupsWhenFullyCached(t *testing.T) {
	lookup := &mapLookup{}

	o := testOrchestrator(testConfig(), &recorder{}, nil)
	o.lookup = lookup
	o.cache = newTestCache(t)
	o.cache.Insert("K4MW", strPtr("Mike"))
	o.cache.Insert("W6JSV", nil)

	members := []domain.Member{
		{Callsign: "K4MW", MemberID: "1"},
		{Callsign: "W6JSV", MemberID: "10"},
	}

	o.enrich(context.Background(), "test", members)

	assert.Equal(t, int32(0), lookup.calls)
	require.NotNil(t, members[0].Nickname)
	assert.Equal(t, "Mike", *members[0].Nickname)
	assert.Nil(t, members[1].Nickname)
}

func TestEnrichBoundsConcurrency(t *testing.T) {
	lookup := &countingLookup{}

	o := testOrchestrator(testConfig(), &recorder{}, nil)
	o.lookup = lookup
	o.cache = newTestCache(t)
	o.maxConcurrent = 5

	var members []domain.Member
	for i := 0; i < 40; i++ {
		members = append(members, domain.Member{
			Callsign: fmt.Sprintf("K%dAB", i),
			MemberID: fmt.Sprintf("%d", i),
		})
	}

	o.enrich(context.Background(), "test", members)

	assert.LessOrEqual(t, lookup.peak, int32(5))
	assert.Greater(t, lookup.peak, int32(0))
}
