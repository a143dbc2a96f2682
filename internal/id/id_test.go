package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: NewAt with an older timestamp resets the monotonic
// sequence, so ordering only holds while nothing else generates IDs.
func TestNewIsUniqueAndSorted(t *testing.T) {
	prev := ""
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s := New()
		assert.Len(t, s, 26)
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
		if prev != "" {
			assert.Less(t, prev, s)
		}
		prev = s
	}
}

func TestNewAtCarriesTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewAt(at)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), "got %s want %s", got, at)
}

func TestNewAtClampsPreEpoch(t *testing.T) {
	t.Parallel()

	s := NewAt(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))
	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(0, 0)))
}

func TestNewAtClampsFarFuture(t *testing.T) {
	t.Parallel()

	var s string
	require.NotPanics(t, func() {
		s = NewAt(time.Date(20000, 1, 1, 0, 0, 0, 0, time.UTC))
	})
	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(ulid.Time(ulid.MaxTime())), "got %s", got)
}

func TestTimeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
