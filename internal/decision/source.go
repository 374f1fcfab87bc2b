package decision

import (
	"math/rand"
	"time"
)

// Source yields draws in [0,1). Implementations need not be safe for
// concurrent use; Engine serializes its calls.
type Source interface {
	Float64() float64
}

// DailySource reseeds from the calendar date (YYYYMMDD) whenever the date of
// the injected clock changes. Draws within one day continue the same stream.
type DailySource struct {
	now  func() time.Time
	day  int64
	rand *rand.Rand
}

func NewDailySource(now func() time.Time) *DailySource {
	if now == nil {
		now = time.Now
	}
	return &DailySource{now: now}
}

func (d *DailySource) Float64() float64 {
	day := DaySeed(d.now())
	if d.rand == nil || day != d.day {
		d.day = day
		d.rand = rand.New(rand.NewSource(day))
	}
	return d.rand.Float64()
}

// DaySeed converts the local calendar date of t into an integer like 20260301.
func DaySeed(t time.Time) int64 {
	y, m, d := t.Date()
	return int64(y*10000 + int(m)*100 + d)
}

// SeededSource is a fixed-seed stream for replays and tests.
type SeededSource struct {
	rand *rand.Rand
}

func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rand: rand.New(rand.NewSource(seed))}
}

func (s *SeededSource) Float64() float64 {
	return s.rand.Float64()
}

// NeutralSource always returns 0.5, which turns jitter off.
type NeutralSource struct{}

func (NeutralSource) Float64() float64 { return 0.5 }
