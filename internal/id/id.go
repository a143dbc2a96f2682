package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID stamped with the current wall clock.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID whose timestamp component is t.
//
// Backtests stamp trades with the simulated bar time so that trade IDs sort
// in replay order rather than in the order the replay happened to run.
// Times outside the ULID range (before the Unix epoch or after
// ulid.MaxTime) are clamped to its bounds.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	if hi := ulid.Time(ulid.MaxTime()); t.After(hi) {
		t = hi
	}

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Monotonic entropy only fails on overflow within one millisecond.
		panic(err)
	}
	return id.String()
}

// Time extracts the timestamp component of a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
