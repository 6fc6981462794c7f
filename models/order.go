package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Field counts of the delimited record shapes. The layouts are fixed per
// source: region snapshots and archive rows carry region/type inline, the
// archive interval stream strips them, and structure snapshots never had them.
const (
	orderFieldCount          = 12
	archiveOrderFieldCount   = 10
	structureOrderFieldCount = 11
)

// Order is a single market order as stored in region snapshots and the
// online archive. Immutable once parsed.
type Order struct {
	RegionID      int64   `json:"regionID"`
	TypeID        int64   `json:"typeID"`
	OrderID       int64   `json:"orderID"`
	Buy           bool    `json:"buy"`
	Issued        int64   `json:"issued"`
	Price         float64 `json:"price"`
	VolumeEntered int64   `json:"volumeEntered"`
	MinVolume     int64   `json:"minVolume"`
	Volume        int64   `json:"volume"`
	OrderRange    string  `json:"orderRange"`
	LocationID    int64   `json:"locationID"`
	Duration      int64   `json:"duration"`
}

// StructureOrder is an order scoped to a trading structure. The structure id
// is not part of the raw record and is supplied by the caller.
type StructureOrder struct {
	StructureID   int64   `json:"structureID"`
	TypeID        int64   `json:"typeID"`
	OrderID       int64   `json:"orderID"`
	Buy           bool    `json:"buy"`
	Issued        int64   `json:"issued"`
	Price         float64 `json:"price"`
	VolumeEntered int64   `json:"volumeEntered"`
	MinVolume     int64   `json:"minVolume"`
	Volume        int64   `json:"volume"`
	OrderRange    string  `json:"orderRange"`
	LocationID    int64   `json:"locationID"`
	Duration      int64   `json:"duration"`
}

// OrderBook is one point-in-time capture of the outstanding orders for a
// type in a region. Orders hold all bids (price descending) followed by all
// asks (price ascending). An empty Orders slice is a valid book.
type OrderBook struct {
	BookTime int64   `json:"bookTime"`
	Orders   []Order `json:"orders"`
	TypeID   int64   `json:"typeID"`
	RegionID int64   `json:"regionID"`
}

// StructureOrderBook is the OrderBook variant keyed by structure.
type StructureOrderBook struct {
	BookTime    int64            `json:"bookTime"`
	Orders      []StructureOrder `json:"orders"`
	TypeID      int64            `json:"typeID"`
	StructureID int64            `json:"structureID"`
}

// ParseOrder decodes a region snapshot or archive history row:
// regionID,typeID,orderID,buy,issued,price,volumeEntered,minVolume,volume,range,locationID,duration
func ParseOrder(line string) (Order, error) {
	f := strings.Split(line, ",")
	if len(f) != orderFieldCount {
		return Order{}, fmt.Errorf("order record has %d fields, want %d", len(f), orderFieldCount)
	}
	var o Order
	var err error
	if o.RegionID, err = recordInt(f, 0); err != nil {
		return Order{}, err
	}
	if o.TypeID, err = recordInt(f, 1); err != nil {
		return Order{}, err
	}
	if err = o.parseTail(f[2:]); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ParseArchiveOrder decodes one order line of the archive interval stream.
// The line lacks region and type, which the surrounding stream supplies:
// orderID,buy,issued,price,volumeEntered,minVolume,volume,range,locationID,duration
func ParseArchiveOrder(regionID, typeID int64, line string) (Order, error) {
	f := strings.Split(line, ",")
	if len(f) != archiveOrderFieldCount {
		return Order{}, fmt.Errorf("archive order record has %d fields, want %d", len(f), archiveOrderFieldCount)
	}
	o := Order{RegionID: regionID, TypeID: typeID}
	if err := o.parseTail(f); err != nil {
		return Order{}, err
	}
	return o, nil
}

// parseTail fills the fields shared by every order shape, starting at the
// orderID column.
func (o *Order) parseTail(f []string) error {
	var err error
	if o.OrderID, err = recordInt(f, 0); err != nil {
		return err
	}
	o.Buy = f[1] == "true"
	if o.Issued, err = recordInt(f, 2); err != nil {
		return err
	}
	if o.Price, err = recordFloat(f, 3); err != nil {
		return err
	}
	if o.VolumeEntered, err = recordInt(f, 4); err != nil {
		return err
	}
	if o.MinVolume, err = recordInt(f, 5); err != nil {
		return err
	}
	if o.Volume, err = recordInt(f, 6); err != nil {
		return err
	}
	o.OrderRange = f[7]
	if o.LocationID, err = recordInt(f, 8); err != nil {
		return err
	}
	o.Duration, err = recordInt(f, 9)
	return err
}

// ParseStructureOrder decodes a structure snapshot CSV row:
// orderID,typeID,buy,issued,price,volumeEntered,minVolume,volume,range,locationID,duration
func ParseStructureOrder(structureID int64, line string) (StructureOrder, error) {
	f := strings.Split(line, ",")
	if len(f) != structureOrderFieldCount {
		return StructureOrder{}, fmt.Errorf("structure order record has %d fields, want %d", len(f), structureOrderFieldCount)
	}
	o := StructureOrder{StructureID: structureID}
	var err error
	if o.OrderID, err = recordInt(f, 0); err != nil {
		return StructureOrder{}, err
	}
	if o.TypeID, err = recordInt(f, 1); err != nil {
		return StructureOrder{}, err
	}
	o.Buy = f[2] == "true"
	if o.Issued, err = recordInt(f, 3); err != nil {
		return StructureOrder{}, err
	}
	if o.Price, err = recordFloat(f, 4); err != nil {
		return StructureOrder{}, err
	}
	if o.VolumeEntered, err = recordInt(f, 5); err != nil {
		return StructureOrder{}, err
	}
	if o.MinVolume, err = recordInt(f, 6); err != nil {
		return StructureOrder{}, err
	}
	if o.Volume, err = recordInt(f, 7); err != nil {
		return StructureOrder{}, err
	}
	o.OrderRange = f[8]
	if o.LocationID, err = recordInt(f, 9); err != nil {
		return StructureOrder{}, err
	}
	if o.Duration, err = recordInt(f, 10); err != nil {
		return StructureOrder{}, err
	}
	return o, nil
}

// Record encodes the order back into its snapshot row form.
func (o Order) Record() string {
	return strconv.FormatInt(o.RegionID, 10) + "," +
		strconv.FormatInt(o.TypeID, 10) + "," +
		o.recordTail()
}

// ArchiveRecord encodes the order into its interval stream row form, without
// region and type.
func (o Order) ArchiveRecord() string {
	return o.recordTail()
}

func (o Order) recordTail() string {
	return strconv.FormatInt(o.OrderID, 10) + "," +
		strconv.FormatBool(o.Buy) + "," +
		strconv.FormatInt(o.Issued, 10) + "," +
		strconv.FormatFloat(o.Price, 'g', -1, 64) + "," +
		strconv.FormatInt(o.VolumeEntered, 10) + "," +
		strconv.FormatInt(o.MinVolume, 10) + "," +
		strconv.FormatInt(o.Volume, 10) + "," +
		o.OrderRange + "," +
		strconv.FormatInt(o.LocationID, 10) + "," +
		strconv.FormatInt(o.Duration, 10)
}

// Record encodes the structure order back into its snapshot row form.
func (o StructureOrder) Record() string {
	return strconv.FormatInt(o.OrderID, 10) + "," +
		strconv.FormatInt(o.TypeID, 10) + "," +
		strconv.FormatBool(o.Buy) + "," +
		strconv.FormatInt(o.Issued, 10) + "," +
		strconv.FormatFloat(o.Price, 'g', -1, 64) + "," +
		strconv.FormatInt(o.VolumeEntered, 10) + "," +
		strconv.FormatInt(o.MinVolume, 10) + "," +
		strconv.FormatInt(o.Volume, 10) + "," +
		o.OrderRange + "," +
		strconv.FormatInt(o.LocationID, 10) + "," +
		strconv.FormatInt(o.Duration, 10)
}

func recordInt(fields []string, i int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(fields[i]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %d %q: %w", i, fields[i], err)
	}
	return v, nil
}

func recordFloat(fields []string, i int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("field %d %q: %w", i, fields[i], err)
	}
	return v, nil
}
