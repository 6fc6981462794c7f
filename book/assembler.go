// Package book assembles raw snapshot orders into canonical order books.
// Raw snapshots do not sort orders; archived interval books arrive already
// sorted and bypass this package.
package book

import (
	"sort"

	"marketarc/models"
)

// Assemble partitions orders into bids and asks and produces the canonical
// sequence: bids by price descending, then asks by price ascending. Ties keep
// discovery order. Membership is preserved exactly.
func Assemble(bookTime, typeID, regionID int64, orders []models.Order) *models.OrderBook {
	bids := make([]models.Order, 0, len(orders))
	asks := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Buy {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return &models.OrderBook{
		BookTime: bookTime,
		Orders:   append(bids, asks...),
		TypeID:   typeID,
		RegionID: regionID,
	}
}

// AssembleStructure is Assemble for structure-scoped orders.
func AssembleStructure(bookTime, typeID, structureID int64, orders []models.StructureOrder) *models.StructureOrderBook {
	bids := make([]models.StructureOrder, 0, len(orders))
	asks := make([]models.StructureOrder, 0, len(orders))
	for _, o := range orders {
		if o.Buy {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return &models.StructureOrderBook{
		BookTime:    bookTime,
		Orders:      append(bids, asks...),
		TypeID:      typeID,
		StructureID: structureID,
	}
}
