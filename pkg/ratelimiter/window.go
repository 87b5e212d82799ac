package ratelimiter

import (
	"sort"
	"time"
)

// windowLog is the chronological log of admitted requests.
// It is not safe for concurrent use; the Gate mutex guards it.
type windowLog struct {
	retention time.Duration
	records   []RequestRecord
}

func newWindowLog(retention time.Duration) *windowLog {
	return &windowLog{retention: retention}
}

// prune drops records older than now minus the retention horizon.
func (l *windowLog) prune(now time.Time) {
	cutoff := now.Add(-l.retention)
	idx := l.firstAtOrAfter(cutoff)
	if idx == 0 {
		return
	}
	if idx == len(l.records) {
		l.records = l.records[:0]
		return
	}
	n := copy(l.records, l.records[idx:])
	clear(l.records[n:])
	l.records = l.records[:n]
}

// countSince returns how many records fall in [now-window, now].
func (l *windowLog) countSince(now time.Time, window time.Duration) int {
	return len(l.records) - l.firstAtOrAfter(now.Add(-window))
}

// releaseTime returns the timestamp of the record whose expiry brings the
// window below limit. ok is false when the window already has room.
func (l *windowLog) releaseTime(now time.Time, window time.Duration, limit int) (time.Time, bool) {
	start := l.firstAtOrAfter(now.Add(-window))
	count := len(l.records) - start
	if count < limit {
		return time.Time{}, false
	}
	return l.records[start+count-limit].Timestamp, true
}

// record appends an admission. Timestamps never move backwards.
func (l *windowLog) record(at time.Time, endpoint string) RequestRecord {
	if n := len(l.records); n > 0 {
		if last := l.records[n-1].Timestamp; at.Before(last) {
			at = last
		}
	}
	rec := RequestRecord{Timestamp: at, Endpoint: endpoint}
	l.records = append(l.records, rec)
	return rec
}

func (l *windowLog) len() int {
	return len(l.records)
}

// firstAtOrAfter finds the first record with timestamp >= cutoff.
func (l *windowLog) firstAtOrAfter(cutoff time.Time) int {
	return sort.Search(len(l.records), func(i int) bool {
		return !l.records[i].Timestamp.Before(cutoff)
	})
}
