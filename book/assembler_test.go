package book

import (
	"testing"

	"marketarc/models"
)

func order(id int64, buy bool, price float64) models.Order {
	return models.Order{RegionID: 1, TypeID: 34, OrderID: id, Buy: buy, Price: price}
}

func TestAssembleOrdering(t *testing.T) {
	orders := []models.Order{
		order(1, false, 6.0),
		order(2, true, 5.0),
		order(3, false, 5.9),
		order(4, true, 5.5),
		order(5, true, 4.8),
		order(6, false, 7.2),
	}

	result := Assemble(1000, 34, 1, orders)

	if result.BookTime != 1000 || result.TypeID != 34 || result.RegionID != 1 {
		t.Fatalf("book metadata: %+v", result)
	}
	if len(result.Orders) != len(orders) {
		t.Fatalf("membership: got %d orders, want %d", len(result.Orders), len(orders))
	}

	// Bids first, price descending.
	bidCount := 0
	for _, o := range result.Orders {
		if !o.Buy {
			break
		}
		bidCount++
	}
	if bidCount != 3 {
		t.Fatalf("bid count: got %d, want 3", bidCount)
	}
	for i := 1; i < bidCount; i++ {
		if result.Orders[i].Price > result.Orders[i-1].Price {
			t.Fatalf("bids not descending at %d: %+v", i, result.Orders[:bidCount])
		}
	}
	// Asks after, price ascending.
	for i := bidCount + 1; i < len(result.Orders); i++ {
		if result.Orders[i].Buy {
			t.Fatalf("bid after ask boundary at %d", i)
		}
		if result.Orders[i].Price < result.Orders[i-1].Price {
			t.Fatalf("asks not ascending at %d: %+v", i, result.Orders[bidCount:])
		}
	}

	// No drops, no duplicates.
	seen := map[int64]bool{}
	for _, o := range result.Orders {
		if seen[o.OrderID] {
			t.Fatalf("duplicate order %d", o.OrderID)
		}
		seen[o.OrderID] = true
	}
}

func TestAssembleStableTies(t *testing.T) {
	orders := []models.Order{
		order(1, true, 5.0),
		order(2, true, 5.0),
		order(3, true, 5.0),
	}
	result := Assemble(0, 34, 1, orders)
	for i, want := range []int64{1, 2, 3} {
		if result.Orders[i].OrderID != want {
			t.Fatalf("tie order not stable: %+v", result.Orders)
		}
	}
}

func TestAssembleEmpty(t *testing.T) {
	result := Assemble(0, 34, 1, nil)
	if result.Orders == nil || len(result.Orders) != 0 {
		t.Fatalf("empty input must yield empty non-nil orders: %+v", result.Orders)
	}
}

func TestAssembleStructure(t *testing.T) {
	orders := []models.StructureOrder{
		{StructureID: 9, TypeID: 34, OrderID: 1, Buy: false, Price: 3},
		{StructureID: 9, TypeID: 34, OrderID: 2, Buy: true, Price: 2},
		{StructureID: 9, TypeID: 34, OrderID: 3, Buy: false, Price: 1},
	}
	result := AssembleStructure(500, 34, 9, orders)
	if result.StructureID != 9 || result.BookTime != 500 {
		t.Fatalf("book metadata: %+v", result)
	}
	if !result.Orders[0].Buy || result.Orders[1].Price != 1 || result.Orders[2].Price != 3 {
		t.Fatalf("ordering: %+v", result.Orders)
	}
}
