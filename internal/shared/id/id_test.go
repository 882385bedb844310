package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"trace", NewTraceID().String(), TracePrefix + "_"},
		{"span", NewSpanID().String(), SpanPrefix + "_"},
		{"request", NewRequestID().String(), RequestPrefix + "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix))
			assert.True(t, IsValid(tt.id))
		})
	}
}

func TestMonotonicWithinGenerator(t *testing.T) {
	g := NewGenerator()

	prev := g.Generate()
	for i := 0; i < 1000; i++ {
		next := g.Generate()
		require.Equal(t, 1, next.Compare(prev), "ids must strictly increase")
		prev = next
	}
}

func TestConcurrentUniqueness(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s := NewRequestID().String()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4000)
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewTraceID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))
}

func TestParseInvalid(t *testing.T) {
	assert.False(t, IsValid("trace_not-a-ulid"))
	assert.False(t, IsValid(""))

	_, err := Timestamp("garbage")
	assert.Error(t, err)
}
