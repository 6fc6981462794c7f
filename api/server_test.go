package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"marketarc/archive"
	appconfig "marketarc/config"
	"marketarc/logger"
	"marketarc/models"
	"marketarc/service"
)

// 2017-04-30T00:00:00Z in epoch milliseconds.
const testDay = int64(1493510400000)

func writeSnapshot(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestRouter(t *testing.T, snapDir, archiveRoot string) *gin.Engine {
	t.Helper()
	cfg := &appconfig.Config{
		Server:    appconfig.ServerConfig{Address: ":0"},
		Snapshots: appconfig.SnapshotsConfig{Dir: snapDir},
		Archive: appconfig.ArchiveConfig{
			Backend:           appconfig.BackendHTTPS,
			Root:              archiveRoot,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 100,
			Burst:             10,
		},
	}
	arch, err := archive.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	srv := NewServer(cfg.Server, service.NewLookup(cfg, arch), logger.GetLogger())
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}
	return router
}

// emptyArchive answers every key with 404, the way the bulk archive does for
// days it never captured.
func emptyArchive(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
}

func do(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestBookEndpointFromSnapshot(t *testing.T) {
	snapDir := t.TempDir()
	order := models.Order{
		RegionID: 10000002, TypeID: 34, OrderID: 9001, Buy: true,
		Issued: testDay, Price: 5.5, VolumeEntered: 100, MinVolume: 1,
		Volume: 100, OrderRange: "region", LocationID: 60003760, Duration: 90,
	}
	writeSnapshot(t, filepath.Join(snapDir, "regions", "10000002"),
		"region_"+strconv.FormatInt(testDay+1000, 10)+"_snap.gz",
		"1", order.Record())

	router := newTestRouter(t, snapDir, "http://127.0.0.1:1")

	w := do(router, "/book?type=34&region=10000002&date="+strconv.FormatInt(testDay+5000, 10))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	var bk models.OrderBook
	if err := json.Unmarshal(w.Body.Bytes(), &bk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bk.BookTime != testDay+1000 || len(bk.Orders) != 1 || bk.Orders[0].OrderID != 9001 {
		t.Fatalf("book: %+v", bk)
	}
}

func TestBookEndpointBadDate(t *testing.T) {
	router := newTestRouter(t, t.TempDir(), "http://127.0.0.1:1")

	w := do(router, "/book?type=34&region=10000002&date=notadate")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "failed to parse date") {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestBookEndpointNotFound(t *testing.T) {
	srv := emptyArchive(t)
	defer srv.Close()

	router := newTestRouter(t, t.TempDir(), srv.URL)

	w := do(router, "/book?type=34&region=10000002&date="+strconv.FormatInt(testDay, 10))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "type: 34") || !strings.Contains(body, "region: 10000002") {
		t.Fatalf("body: %s", body)
	}
}

func TestBookEndpointArchiveFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	router := newTestRouter(t, t.TempDir(), srv.URL)

	w := do(router, "/book?type=34&region=10000002&date="+strconv.FormatInt(testDay, 10))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
}

func TestHistoryEndpointFromSnapshot(t *testing.T) {
	snapDir := t.TempDir()
	row := models.MarketHistory{
		TypeID: 34, RegionID: 10000002, OrderCount: 120,
		LowPrice: 4.1, HighPrice: 6.2, AvgPrice: 5.05, Volume: 1000000,
		Date: testDay,
	}
	writeSnapshot(t, filepath.Join(snapDir, "history", "34"),
		"history_"+strconv.FormatInt(testDay, 10)+"_10000002_snap.gz",
		"1", row.Record())

	router := newTestRouter(t, snapDir, "http://127.0.0.1:1")

	w := do(router, "/history?typeID=34&regionID=10000002&date="+strconv.FormatInt(testDay+7200000, 10))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var got models.MarketHistory
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != row {
		t.Fatalf("row: got %+v, want %+v", got, row)
	}
}

func TestLiveBookEndpoint(t *testing.T) {
	snapDir := t.TempDir()
	order := models.Order{
		RegionID: 10000002, TypeID: 34, OrderID: 9002, Buy: false,
		Issued: testDay, Price: 6.1, VolumeEntered: 100, MinVolume: 1,
		Volume: 100, OrderRange: "region", LocationID: 60003760, Duration: 90,
	}
	writeSnapshot(t, filepath.Join(snapDir, "regions", "10000002"),
		"region_"+strconv.FormatInt(testDay+1000, 10)+"_snap.gz",
		"1", order.Record())

	router := newTestRouter(t, snapDir, "http://127.0.0.1:1")

	w := do(router, "/livebook?typeID=34,35&regionID=10000002")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var books []models.OrderBook
	if err := json.Unmarshal(w.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(books) != 2 || books[0].TypeID != 34 || books[1].TypeID != 35 {
		t.Fatalf("books: %+v", books)
	}
	if len(books[0].Orders) != 1 || len(books[1].Orders) != 0 {
		t.Fatalf("orders: %+v", books)
	}
}

func TestLiveBookEndpointNoSnapshot(t *testing.T) {
	router := newTestRouter(t, t.TempDir(), "http://127.0.0.1:1")

	w := do(router, "/livebook?typeID=34&regionID=10000002")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
}

func TestLiveStructureEndpoint(t *testing.T) {
	snapDir := t.TempDir()
	row := models.StructureOrder{
		StructureID: 1021975535893, TypeID: 34, OrderID: 9003, Buy: true,
		Issued: testDay, Price: 5.5, VolumeEntered: 10, MinVolume: 1,
		Volume: 10, OrderRange: "structure", LocationID: 1021975535893, Duration: 90,
	}
	writeSnapshot(t, filepath.Join(snapDir, "structures", "1021975535893"),
		"structure_snap_"+strconv.FormatInt(testDay+4000, 10)+".gz",
		"orderID,typeID,buy,issued,price,volumeEntered,minVolume,volume,range,locationID,duration",
		row.Record())

	router := newTestRouter(t, snapDir, "http://127.0.0.1:1")

	w := do(router, "/livestructure?typeID=34&structureID=1021975535893")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var books []models.StructureOrderBook
	if err := json.Unmarshal(w.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(books) != 1 || books[0].StructureID != 1021975535893 {
		t.Fatalf("books: %+v", books)
	}
}

func TestOptionsRequestShortCircuits(t *testing.T) {
	router := newTestRouter(t, t.TempDir(), "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/book", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("missing CORS methods header")
	}
}
