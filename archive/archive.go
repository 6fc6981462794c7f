// Package archive resolves point-in-time market queries against the remote,
// day-partitioned bulk archive. Each lookup fetches a small per-day index,
// computes the byte range of the target key, pulls only that range from the
// bulk sibling and reconstructs records from the compressed span.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appconfig "marketarc/config"
	"marketarc/logger"
	"marketarc/models"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Archive is the remote lookup tier. Safe for concurrent use; lookups share
// nothing but the store's HTTP client.
type Archive struct {
	store Store
	log   *logger.Log
}

// New selects the configured store backend.
func New(ctx context.Context, cfg *appconfig.Config) (*Archive, error) {
	log := logger.GetLogger()

	var store Store
	switch cfg.Archive.Backend {
	case appconfig.BackendS3:
		s3, err := newS3Store(ctx, cfg.Archive.S3)
		if err != nil {
			return nil, fmt.Errorf("create s3 archive store: %w", err)
		}
		store = s3
	default:
		store = newHTTPStore(cfg.Archive)
	}

	log.WithComponent("archive").WithFields(logger.Fields{
		"backend": cfg.Archive.Backend,
	}).Info("archive tier initialized")

	return &Archive{store: store, log: log}, nil
}

// NewWithStore builds an Archive over an explicit store.
func NewWithStore(store Store) *Archive {
	return &Archive{store: store, log: logger.GetLogger()}
}

// History looks up the aggregated market row for one type/region/day. The
// instant is truncated to UTC midnight. Returns ErrNotFound when the day,
// the type or the region is absent from the archive.
func (a *Archive) History(ctx context.Context, typeID, regionID int64, at time.Time) (*models.MarketHistory, error) {
	day := at.UnixMilli() - at.UnixMilli()%millisPerDay
	ref := historyRef(time.UnixMilli(day))
	log := a.log.WithComponent("archive").WithFields(logger.Fields{
		"operation": "history",
		"type":      typeID,
		"region":    regionID,
		"index":     ref.index,
	})

	raw, err := a.fetchSpan(ctx, ref, typeID)
	if err != nil {
		return nil, err
	}

	// The range holds one gzip member per region row; scan until the
	// target region shows up.
	var found *models.MarketHistory
	err = EachMember(raw, func(payload []byte) (bool, error) {
		row, err := models.ParseMarketHistory(strings.TrimSpace(string(payload)))
		if err != nil {
			log.WithError(err).Debug("dropping undecodable history member")
			return false, nil
		}
		if row.RegionID == regionID {
			found = &row
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ErrCorruptMember) {
			log.WithError(err).Warn("history member boundary scan failed")
			return nil, ErrNotFound
		}
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// OrderBook looks up the latest archived book for one type/region at or
// before the given instant, within that instant's UTC day.
func (a *Archive) OrderBook(ctx context.Context, typeID, regionID int64, at time.Time) (*models.OrderBook, error) {
	ref := bookRef(at.UTC())
	log := a.log.WithComponent("archive").WithFields(logger.Fields{
		"operation": "order_book",
		"type":      typeID,
		"region":    regionID,
		"index":     ref.index,
	})

	raw, err := a.fetchSpan(ctx, ref, typeID)
	if err != nil {
		return nil, err
	}

	best, found, err := bestIntervalInStream(raw, typeID, regionID, at.UnixMilli())
	if err != nil {
		return nil, err
	}
	if !found {
		log.Debug("no qualifying interval in archive range")
		return nil, ErrNotFound
	}

	// Archived books are already bid/ask sorted.
	return &models.OrderBook{
		BookTime: best.bookTime,
		Orders:   best.orders,
		TypeID:   typeID,
		RegionID: regionID,
	}, nil
}

// fetchSpan resolves the byte range of typeID through the index object and
// pulls that range from the bulk sibling.
func (a *Archive) fetchSpan(ctx context.Context, ref bulkRef, typeID int64) ([]byte, error) {
	indexRaw, err := a.store.Fetch(ctx, ref.index)
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(indexRaw))
	if err != nil {
		return nil, fmt.Errorf("decompress index %s: %w", ref.index, err)
	}
	defer zr.Close()

	span, found, err := resolveSpan(zr, typeID)
	if err != nil {
		return nil, fmt.Errorf("scan index %s: %w", ref.index, err)
	}
	if !found {
		return nil, ErrNotFound
	}

	return a.store.FetchRange(ctx, ref.bulk, span)
}
