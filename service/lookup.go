// Package service sequences the two storage tiers for each endpoint kind:
// the local snapshot directory first, then the remote archive. Local success
// short-circuits the archive entirely; absence in both tiers collapses into
// one NotFoundError naming the query.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"marketarc/archive"
	"marketarc/book"
	appconfig "marketarc/config"
	"marketarc/logger"
	"marketarc/models"
	"marketarc/snapshot"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Filename segment positions of the embedded timestamp per snapshot kind.
const (
	regionTimeSegment    = 1
	structureTimeSegment = 2
	historyTimeSegment   = 1
	historyKeySegment    = 2
)

// NotFoundError reports that a query matched nothing in either tier.
type NotFoundError struct {
	Kind        string
	TypeIDs     []int64
	RegionID    int64
	StructureID int64
	At          string
}

func (e *NotFoundError) Error() string {
	scope := fmt.Sprintf("region: %d", e.RegionID)
	if e.StructureID != 0 {
		scope = fmt.Sprintf("structure: %d", e.StructureID)
	}
	types := ""
	for i, id := range e.TypeIDs {
		if i > 0 {
			types += ","
		}
		types += strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("failed to find %s for type: %s, %s, at: %s", e.Kind, types, scope, e.At)
}

// Lookup answers point-in-time and historical market queries. Stateless
// between queries; safe for concurrent use.
type Lookup struct {
	cfg     *appconfig.Config
	archive *archive.Archive
	log     *logger.Log
}

func NewLookup(cfg *appconfig.Config, arch *archive.Archive) *Lookup {
	return &Lookup{cfg: cfg, archive: arch, log: logger.GetLogger()}
}

// BookAt returns the order book for one type/region closest at or before the
// given instant, from the newest qualifying snapshot or, failing that, the
// archive.
func (l *Lookup) BookAt(ctx context.Context, typeID, regionID int64, at time.Time) (*models.OrderBook, error) {
	log := l.lookupLog("book", logger.Fields{"type": typeID, "region": regionID, "at": at.UnixMilli()})

	cat := snapshot.NewCatalog(l.regionDir(regionID), regionTimeSegment)
	if cand := cat.ClosestBefore(at.UnixMilli()); cand != nil {
		byType, err := snapshot.ReadOrders(cand.Path, []int64{typeID})
		if err != nil {
			return nil, err
		}
		log.WithFields(logger.Fields{"snapshot": cand.Path}).Debug("served order book from snapshot")
		logger.IncrementSnapshotHit()
		return book.Assemble(cand.Timestamp, typeID, regionID, byType[typeID]), nil
	}

	bk, err := l.archive.OrderBook(ctx, typeID, regionID, at)
	if errors.Is(err, archive.ErrNotFound) {
		logger.IncrementNotFound()
		return nil, &NotFoundError{
			Kind:     "order book",
			TypeIDs:  []int64{typeID},
			RegionID: regionID,
			At:       at.UTC().Format(time.RFC3339),
		}
	}
	if err != nil {
		return nil, err
	}
	log.Debug("served order book from archive")
	logger.IncrementArchiveHit()
	return bk, nil
}

// HistoryOn returns the aggregated market row for one type/region on the UTC
// day containing the given instant.
func (l *Lookup) HistoryOn(ctx context.Context, typeID, regionID int64, at time.Time) (*models.MarketHistory, error) {
	day := at.UnixMilli() - at.UnixMilli()%millisPerDay
	log := l.lookupLog("history", logger.Fields{"type": typeID, "region": regionID, "day": day})

	// History snapshots are partitioned by type and keyed by region inside
	// the filename; the newest file for the region may still lack the day.
	cat := snapshot.NewCatalog(l.historyDir(typeID), historyTimeSegment)
	if cand := cat.KeyedLatest(strconv.FormatInt(regionID, 10), historyKeySegment); cand != nil {
		row, err := snapshot.ReadHistory(cand.Path, day)
		if err != nil {
			return nil, err
		}
		if row != nil {
			log.WithFields(logger.Fields{"snapshot": cand.Path}).Debug("served history from snapshot")
			logger.IncrementSnapshotHit()
			return row, nil
		}
	}

	row, err := l.archive.History(ctx, typeID, regionID, at)
	if errors.Is(err, archive.ErrNotFound) {
		logger.IncrementNotFound()
		return nil, &NotFoundError{
			Kind:     "market history",
			TypeIDs:  []int64{typeID},
			RegionID: regionID,
			At:       time.UnixMilli(day).UTC().Format("2006-01-02"),
		}
	}
	if err != nil {
		return nil, err
	}
	log.Debug("served history from archive")
	logger.IncrementArchiveHit()
	return row, nil
}

// LiveBooks returns one assembled book per requested type from the newest
// region snapshot. Live queries have no upper time bound and therefore no
// archive fallback: the archive is day-granular, so a missing snapshot is
// terminal.
func (l *Lookup) LiveBooks(ctx context.Context, typeIDs []int64, regionID int64) ([]*models.OrderBook, error) {
	log := l.lookupLog("livebook", logger.Fields{"types": typeIDs, "region": regionID})

	cand := snapshot.NewCatalog(l.regionDir(regionID), regionTimeSegment).Latest()
	if cand == nil {
		logger.IncrementNotFound()
		return nil, &NotFoundError{
			Kind:     "order book",
			TypeIDs:  typeIDs,
			RegionID: regionID,
			At:       "live",
		}
	}

	byType, err := snapshot.ReadOrders(cand.Path, typeIDs)
	if err != nil {
		return nil, err
	}

	books := make([]*models.OrderBook, 0, len(typeIDs))
	for _, id := range typeIDs {
		books = append(books, book.Assemble(cand.Timestamp, id, regionID, byType[id]))
	}
	log.WithFields(logger.Fields{"snapshot": cand.Path}).Debug("served live books from snapshot")
	logger.IncrementSnapshotHit()
	return books, nil
}

// LiveStructureBooks is LiveBooks for a trading structure.
func (l *Lookup) LiveStructureBooks(ctx context.Context, typeIDs []int64, structureID int64) ([]*models.StructureOrderBook, error) {
	log := l.lookupLog("livestructure", logger.Fields{"types": typeIDs, "structure": structureID})

	cand := snapshot.NewCatalog(l.structureDir(structureID), structureTimeSegment).Latest()
	if cand == nil {
		logger.IncrementNotFound()
		return nil, &NotFoundError{
			Kind:        "order book",
			TypeIDs:     typeIDs,
			StructureID: structureID,
			At:          "live",
		}
	}

	byType, err := snapshot.ReadStructureOrders(cand.Path, structureID, typeIDs)
	if err != nil {
		return nil, err
	}

	books := make([]*models.StructureOrderBook, 0, len(typeIDs))
	for _, id := range typeIDs {
		books = append(books, book.AssembleStructure(cand.Timestamp, id, structureID, byType[id]))
	}
	log.WithFields(logger.Fields{"snapshot": cand.Path}).Debug("served live structure books from snapshot")
	logger.IncrementSnapshotHit()
	return books, nil
}

func (l *Lookup) lookupLog(operation string, fields logger.Fields) *logger.Entry {
	fields["operation"] = operation
	fields["request_id"] = uuid.NewString()
	return l.log.WithComponent("lookup").WithFields(fields)
}

func (l *Lookup) regionDir(regionID int64) string {
	return filepath.Join(l.cfg.Snapshots.Dir, "regions", strconv.FormatInt(regionID, 10))
}

func (l *Lookup) historyDir(typeID int64) string {
	return filepath.Join(l.cfg.Snapshots.Dir, "history", strconv.FormatInt(typeID, 10))
}

func (l *Lookup) structureDir(structureID int64) string {
	return filepath.Join(l.cfg.Snapshots.Dir, "structures", strconv.FormatInt(structureID, 10))
}
