package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"marketarc/logger"
	"marketarc/models"
)

// ErrTypeMismatch reports that the type id asserted by an order-book stream
// does not match the query. It indicates an archive/query mismatch and must
// surface as an integrity failure, never as a silent not-found.
var ErrTypeMismatch = errors.New("archive stream asserts a different type id")

// The order-book bulk range is one contiguous gzip stream whose lines follow
// a strict grammar: asserted type id, total interval count N, then region
// blocks of N intervals each, every interval being region id (first interval
// of a block only), book time, ask count, bid count and ask+bid order lines.
type parseState int

const (
	awaitingType parseState = iota
	awaitingIntervalCount
	awaitingRegion
	awaitingTime
	awaitingAskCount
	awaitingBidCount
	consumingOrders
)

// intervalBook is the winning interval of a scan: the region-matching
// capture with the largest book time not exceeding the cutoff.
type intervalBook struct {
	bookTime int64
	orders   []models.Order
}

// scanBestInterval runs the grammar over decoded lines and tracks the best
// qualifying interval for the target region. The scan terminates as soon as
// a region block completes with a best interval in hand; the remaining input
// is never consumed.
func scanBestInterval(sc *bufio.Scanner, typeID, regionID, cutoff int64) (intervalBook, bool, error) {
	log := logger.GetLogger().WithComponent("interval_parser").WithFields(logger.Fields{
		"type":   typeID,
		"region": regionID,
	})

	state := awaitingType
	var (
		intervalCount int64
		consumed      int64
		curRegion     int64
		curTime       int64
		askCount      int64
		bidCount      int64
		remaining     int64
		orders        []models.Order
		best          intervalBook
	)

	// endInterval folds the finished interval into the running best and
	// decides the next state; it reports true when the scan can stop.
	endInterval := func() bool {
		if curRegion == regionID && curTime > best.bookTime && curTime <= cutoff {
			best.bookTime = curTime
			best.orders = orders
		}
		consumed++
		if consumed == intervalCount {
			if best.bookTime > 0 {
				return true
			}
			consumed = 0
			state = awaitingRegion
		} else {
			state = awaitingTime
		}
		return false
	}

scan:
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch state {
		case awaitingType:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				return intervalBook{}, false, fmt.Errorf("malformed type line %q: %w", line, err)
			}
			if v != typeID {
				return intervalBook{}, false, fmt.Errorf("%w: stream has %d, query has %d", ErrTypeMismatch, v, typeID)
			}
			state = awaitingIntervalCount

		case awaitingIntervalCount:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil || v <= 0 {
				return intervalBook{}, false, fmt.Errorf("malformed interval count line %q", line)
			}
			intervalCount = v
			state = awaitingRegion

		case awaitingRegion:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				return intervalBook{}, false, fmt.Errorf("malformed region line %q: %w", line, err)
			}
			curRegion = v
			state = awaitingTime

		case awaitingTime:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				return intervalBook{}, false, fmt.Errorf("malformed book time line %q: %w", line, err)
			}
			curTime = v
			state = awaitingAskCount

		case awaitingAskCount:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil || v < 0 {
				return intervalBook{}, false, fmt.Errorf("malformed ask count line %q", line)
			}
			askCount = v
			state = awaitingBidCount

		case awaitingBidCount:
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil || v < 0 {
				return intervalBook{}, false, fmt.Errorf("malformed bid count line %q", line)
			}
			bidCount = v
			remaining = askCount + bidCount
			orders = nil
			if curRegion == regionID {
				orders = make([]models.Order, 0, remaining)
			}
			if remaining > 0 {
				state = consumingOrders
			} else if endInterval() {
				break scan
			}

		case consumingOrders:
			remaining--
			if curRegion == regionID {
				order, err := models.ParseArchiveOrder(regionID, typeID, line)
				if err != nil {
					log.WithError(err).Debug("dropping undecodable archive order row")
				} else {
					orders = append(orders, order)
				}
			}
			if remaining == 0 && endInterval() {
				break scan
			}
		}
	}
	if err := sc.Err(); err != nil {
		return intervalBook{}, false, fmt.Errorf("read interval stream: %w", err)
	}

	if best.bookTime == 0 {
		return intervalBook{}, false, nil
	}
	return best, true, nil
}

// bestIntervalInStream decompresses one contiguous gzip stream and scans it.
func bestIntervalInStream(raw []byte, typeID, regionID, cutoff int64) (intervalBook, bool, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return intervalBook{}, false, fmt.Errorf("decompress interval stream: %w", err)
	}
	defer zr.Close()
	return scanBestInterval(newLineScanner(zr), typeID, regionID, cutoff)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}
