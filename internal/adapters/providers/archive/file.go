package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// File writes one json file per response into a directory
// Optional retention by max age and total bytes
type File struct {
	dir             string
	retainMaxAge    time.Duration
	retainMaxBytes  int64
	now             func() time.Time
	lastCleanupUnix atomic.Int64
}

// FileOption configures a File archive
type FileOption func(*File)

// WithRetention sets optional age and size retention
// Pass zero to disable either dimension
func WithRetention(maxAge time.Duration, maxBytes int64) FileOption {
	return func(f *File) {
		f.retainMaxAge = maxAge
		f.retainMaxBytes = maxBytes
	}
}

// NewFile builds a file archive rooted at dir
func NewFile(dir string, opts ...FileOption) *File {
	f := &File{dir: dir, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Save writes <dir>/<endpoint>_<YYYYmmdd_HHMMSS>_<seq>.json atomically
func (f *File) Save(_ context.Context, endpoint string, payload []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s_%d.json", endpointName(endpoint), f.now().UTC().Format(stampLayout), nextSeq())
	path := filepath.Join(f.dir, name)
	tmp := path + ".part"

	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	f.maybeCleanup()
	return nil
}

// maybeCleanup throttles retention cleanup to once per ten minutes
func (f *File) maybeCleanup() {
	if f.retainMaxAge <= 0 && f.retainMaxBytes <= 0 {
		return
	}
	now := f.now().Unix()
	last := f.lastCleanupUnix.Load()
	if last != 0 && now-last < 600 {
		return
	}
	if !f.lastCleanupUnix.CompareAndSwap(last, now) {
		return
	}
	_ = f.cleanupOnce()
}

// cleanupOnce applies age then size retention, oldest first
func (f *File) cleanupOnce() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	type item struct {
		path  string
		size  int64
		stamp time.Time
	}
	var items []item
	var total int64
	cutoff := f.now().Add(-f.retainMaxAge)

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		full := filepath.Join(f.dir, name)
		fi, err := os.Stat(full)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		ts, ok := parseStamp(name)
		if !ok {
			continue
		}
		if f.retainMaxAge > 0 && ts.Before(cutoff) {
			_ = os.Remove(full)
			continue
		}
		items = append(items, item{path: full, size: fi.Size(), stamp: ts})
		total += fi.Size()
	}

	if f.retainMaxBytes > 0 && total > f.retainMaxBytes {
		sort.Slice(items, func(i, j int) bool { return items[i].stamp.Before(items[j].stamp) })
		for _, it := range items {
			if total <= f.retainMaxBytes {
				break
			}
			_ = os.Remove(it.path)
			total -= it.size
		}
	}
	return nil
}

// parseStamp reads the timestamp out of <endpoint>_<YYYYmmdd>_<HHMMSS>_<seq>.json
func parseStamp(name string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
	if len(parts) < 4 {
		return time.Time{}, false
	}
	n := len(parts)
	t, err := time.Parse(stampLayout, parts[n-3]+"_"+parts[n-2])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
