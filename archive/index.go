package archive

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// bulkRef names the pair of day-partitioned objects for one archive kind:
// the small index mapping keys to byte offsets and its bulk sibling.
type bulkRef struct {
	index string
	bulk  string
}

func historyRef(day time.Time) bulkRef {
	dir := day.UTC().Format("2006/01/02")
	stamp := day.UTC().Format("20060102")
	return bulkRef{
		index: dir + "/market_" + stamp + ".index.gz",
		bulk:  dir + "/market_" + stamp + ".bulk",
	}
}

func bookRef(day time.Time) bulkRef {
	dir := day.UTC().Format("2006/01/02")
	stamp := day.UTC().Format("20060102")
	return bulkRef{
		index: dir + "/interval_" + stamp + "_5.index.gz",
		bulk:  dir + "/interval_" + stamp + "_5.bulk",
	}
}

// resolveSpan linear-scans decompressed index lines of the form
// "<compound_key> <offset>" for the entry whose second underscore-delimited
// key segment equals id. The matching entry's offset opens the span; the
// very next line closes it (exclusive, so the inclusive end is offset-1) and
// scanning stops. A match on the final line leaves the span open-ended.
func resolveSpan(r io.Reader, id int64) (Span, bool, error) {
	target := strconv.FormatInt(id, 10)
	span := Span{Start: -1, End: -1}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pair := strings.Fields(line)
		if len(pair) != 2 {
			return Span{}, false, fmt.Errorf("malformed index line %q", line)
		}
		offset, err := strconv.ParseInt(pair[1], 10, 64)
		if err != nil {
			return Span{}, false, fmt.Errorf("malformed index offset %q: %w", pair[1], err)
		}

		if span.Start >= 0 {
			span.End = offset - 1
			return span, true, nil
		}

		segments := strings.Split(pair[0], "_")
		if len(segments) > 1 && segments[1] == target {
			span.Start = offset
		}
	}
	if err := sc.Err(); err != nil {
		return Span{}, false, fmt.Errorf("read index: %w", err)
	}

	if span.Start < 0 {
		return Span{}, false, nil
	}
	return span, true, nil
}
