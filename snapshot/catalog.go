package snapshot

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"marketarc/logger"
)

// Candidate is one snapshot file picked from a directory listing.
type Candidate struct {
	Path      string
	Timestamp int64
}

// Catalog lists the rotated snapshot files of one directory and selects a
// candidate by the epoch-millisecond timestamp embedded in the filename.
// Filenames are underscore-delimited; timeSegment is the index of the
// timestamp segment (region snapshots use 1, structure snapshots use 2).
//
// A missing or unreadable directory is not an error here: every selector
// reports "no candidate" and the caller falls through to the archive.
type Catalog struct {
	dir         string
	timeSegment int
	log         *logger.Log
}

func NewCatalog(dir string, timeSegment int) *Catalog {
	return &Catalog{dir: dir, timeSegment: timeSegment, log: logger.GetLogger()}
}

// ClosestBefore returns the candidate with the largest timestamp strictly
// below cutoff, or nil when no file qualifies.
func (c *Catalog) ClosestBefore(cutoff int64) *Candidate {
	return c.scan(func(ts int64) bool { return ts < cutoff }, nil)
}

// Latest returns the candidate with the largest timestamp overall, or nil.
func (c *Catalog) Latest() *Candidate {
	return c.scan(nil, nil)
}

// KeyedLatest returns the newest candidate whose keySegment filename segment
// equals key, or nil. History snapshots are partitioned by type and keyed by
// region inside the filename.
func (c *Catalog) KeyedLatest(key string, keySegment int) *Candidate {
	return c.scan(nil, func(segments []string) bool {
		return keySegment < len(segments) && segments[keySegment] == key
	})
}

func (c *Catalog) scan(accept func(int64) bool, match func([]string) bool) *Candidate {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.WithComponent("snapshot_catalog").WithFields(logger.Fields{
			"dir": c.dir,
		}).WithError(err).Debug("snapshot directory unavailable, no candidates")
		return nil
	}

	var best *Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// The timestamp may sit in the final segment, before the extension.
		segments := strings.Split(strings.TrimSuffix(name, ".gz"), "_")
		if c.timeSegment >= len(segments) {
			continue
		}
		ts, err := strconv.ParseInt(segments[c.timeSegment], 10, 64)
		if err != nil {
			continue
		}
		if accept != nil && !accept(ts) {
			continue
		}
		if match != nil && !match(segments) {
			continue
		}
		if best == nil || ts > best.Timestamp {
			best = &Candidate{Path: filepath.Join(c.dir, name), Timestamp: ts}
		}
	}
	return best
}
