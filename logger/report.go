package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsArchive  int64
	errorsSnapshot int64
	warnsArchive   int64
	warnsSnapshot  int64
	snapshotHits   int64
	archiveHits    int64
	notFounds      int64
	archiveFetches int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "archive") {
		atomic.AddInt64(&warnsArchive, 1)
	} else if strings.Contains(component, "snapshot") {
		atomic.AddInt64(&warnsSnapshot, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "archive") {
		atomic.AddInt64(&errorsArchive, 1)
	} else if strings.Contains(component, "snapshot") {
		atomic.AddInt64(&errorsSnapshot, 1)
	}
}

// IncrementSnapshotHit records a query answered from a local snapshot file.
func IncrementSnapshotHit() {
	atomic.AddInt64(&snapshotHits, 1)
}

// IncrementArchiveHit records a query answered from the remote archive.
func IncrementArchiveHit() {
	atomic.AddInt64(&archiveHits, 1)
}

// IncrementNotFound records a query that matched nothing in either tier.
func IncrementNotFound() {
	atomic.AddInt64(&notFounds, 1)
}

// IncrementArchiveFetch records one remote archive request and its payload size.
func IncrementArchiveFetch(size int) {
	atomic.AddInt64(&archiveFetches, 1)
	recordChannel("archive_fetch", size)
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and lookup statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_archive":  atomic.LoadInt64(&errorsArchive),
		"errors_snapshot": atomic.LoadInt64(&errorsSnapshot),
		"warns_archive":   atomic.LoadInt64(&warnsArchive),
		"warns_snapshot":  atomic.LoadInt64(&warnsSnapshot),
		"snapshot_hits":   atomic.LoadInt64(&snapshotHits),
		"archive_hits":    atomic.LoadInt64(&archiveHits),
		"not_founds":      atomic.LoadInt64(&notFounds),
		"archive_fetches": atomic.LoadInt64(&archiveFetches),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"channels":        channelData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Arc-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-ErrorsArchive"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_archive"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-ErrorsSnapshot"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_snapshot"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-WarnsArchive"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_archive"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-WarnsSnapshot"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_snapshot"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-SnapshotHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_hits"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-ArchiveHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["archive_hits"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-NotFounds"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["not_founds"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-ArchiveFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["archive_fetches"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Arc-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Arc-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Arc-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
