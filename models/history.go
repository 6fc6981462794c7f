package models

import (
	"fmt"
	"strconv"
	"strings"
)

const historyFieldCount = 8

// MarketHistory is one aggregated type/region/day row. Date is truncated to
// UTC midnight in epoch milliseconds.
type MarketHistory struct {
	TypeID     int64   `json:"typeID"`
	RegionID   int64   `json:"regionID"`
	OrderCount int64   `json:"orderCount"`
	LowPrice   float64 `json:"lowPrice"`
	HighPrice  float64 `json:"highPrice"`
	AvgPrice   float64 `json:"avgPrice"`
	Volume     int64   `json:"volume"`
	Date       int64   `json:"date"`
}

// ParseMarketHistory decodes a history row:
// typeID,regionID,orderCount,lowPrice,highPrice,avgPrice,volume,date
func ParseMarketHistory(line string) (MarketHistory, error) {
	f := strings.Split(line, ",")
	if len(f) != historyFieldCount {
		return MarketHistory{}, fmt.Errorf("history record has %d fields, want %d", len(f), historyFieldCount)
	}
	var h MarketHistory
	var err error
	if h.TypeID, err = recordInt(f, 0); err != nil {
		return MarketHistory{}, err
	}
	if h.RegionID, err = recordInt(f, 1); err != nil {
		return MarketHistory{}, err
	}
	if h.OrderCount, err = recordInt(f, 2); err != nil {
		return MarketHistory{}, err
	}
	if h.LowPrice, err = recordFloat(f, 3); err != nil {
		return MarketHistory{}, err
	}
	if h.HighPrice, err = recordFloat(f, 4); err != nil {
		return MarketHistory{}, err
	}
	if h.AvgPrice, err = recordFloat(f, 5); err != nil {
		return MarketHistory{}, err
	}
	if h.Volume, err = recordInt(f, 6); err != nil {
		return MarketHistory{}, err
	}
	if h.Date, err = recordInt(f, 7); err != nil {
		return MarketHistory{}, err
	}
	return h, nil
}

// Record encodes the row back into its archive form.
func (h MarketHistory) Record() string {
	return strconv.FormatInt(h.TypeID, 10) + "," +
		strconv.FormatInt(h.RegionID, 10) + "," +
		strconv.FormatInt(h.OrderCount, 10) + "," +
		strconv.FormatFloat(h.LowPrice, 'g', -1, 64) + "," +
		strconv.FormatFloat(h.HighPrice, 'g', -1, 64) + "," +
		strconv.FormatFloat(h.AvgPrice, 'g', -1, 64) + "," +
		strconv.FormatInt(h.Volume, 10) + "," +
		strconv.FormatInt(h.Date, 10)
}
