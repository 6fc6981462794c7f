package snapshot

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"

	"marketarc/logger"
	"marketarc/models"
)

const maxLineBytes = 1024 * 1024

// ReadOrders streams a region snapshot file and accumulates the orders of
// the requested types, one bucket per type. The first line of every snapshot
// is a row count and is discarded. Rows that fail to decode are dropped with
// a debug log; they indicate a data-quality problem, not a broken file.
func ReadOrders(path string, typeIDs []int64) (map[int64][]models.Order, error) {
	log := logger.GetLogger().WithComponent("snapshot_reader").WithFields(logger.Fields{"file": path})

	wanted := make(map[int64]struct{}, len(typeIDs))
	byType := make(map[int64][]models.Order, len(typeIDs))
	for _, id := range typeIDs {
		wanted[id] = struct{}{}
		byType[id] = []models.Order{}
	}

	err := eachLine(path, func(line string) (bool, error) {
		order, err := models.ParseOrder(line)
		if err != nil {
			log.WithError(err).Debug("dropping undecodable snapshot row")
			return false, nil
		}
		if _, ok := wanted[order.TypeID]; ok {
			byType[order.TypeID] = append(byType[order.TypeID], order)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return byType, nil
}

// ReadStructureOrders is ReadOrders for structure snapshots, whose rows lack
// a structure id. The first line is a CSV header and is discarded.
func ReadStructureOrders(path string, structureID int64, typeIDs []int64) (map[int64][]models.StructureOrder, error) {
	log := logger.GetLogger().WithComponent("snapshot_reader").WithFields(logger.Fields{"file": path})

	wanted := make(map[int64]struct{}, len(typeIDs))
	byType := make(map[int64][]models.StructureOrder, len(typeIDs))
	for _, id := range typeIDs {
		wanted[id] = struct{}{}
		byType[id] = []models.StructureOrder{}
	}

	err := eachLine(path, func(line string) (bool, error) {
		order, err := models.ParseStructureOrder(structureID, line)
		if err != nil {
			log.WithError(err).Debug("dropping undecodable snapshot row")
			return false, nil
		}
		if _, ok := wanted[order.TypeID]; ok {
			byType[order.TypeID] = append(byType[order.TypeID], order)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return byType, nil
}

// ReadHistory scans a history snapshot for the row whose date equals the
// given UTC day in epoch milliseconds. Input consumption stops on the first
// match. A nil result with nil error means the day is not in the file.
func ReadHistory(path string, date int64) (*models.MarketHistory, error) {
	log := logger.GetLogger().WithComponent("snapshot_reader").WithFields(logger.Fields{"file": path})

	var found *models.MarketHistory
	err := eachLine(path, func(line string) (bool, error) {
		row, err := models.ParseMarketHistory(line)
		if err != nil {
			log.WithError(err).Debug("dropping undecodable snapshot row")
			return false, nil
		}
		if row.Date == date {
			found = &row
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// eachLine streams a gzip snapshot line by line, discarding the leading
// metadata line. fn returns true to stop consuming input early.
func eachLine(path string, fn func(string) (bool, error)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("decompress snapshot %s: %w", path, err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		stop, err := fn(sc.Text())
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return nil
}
