// Package observability aggregates hub counters and process metrics for the
// debug endpoint.
package observability

import (
	"os"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// HubStats holds atomic counters maintained by the broadcast hub. Counters
// only ever grow; Online is a gauge mirroring the presence tracker.
type HubStats struct {
	RelayedMessages   atomic.Uint64
	RejectedPublishes atomic.Uint64
	DroppedPublishes  atomic.Uint64
	online            atomic.Int64
}

func NewHubStats() *HubStats {
	return &HubStats{}
}

func (s *HubStats) SetOnline(n int) {
	s.online.Store(int64(n))
}

// Snapshot is the JSON shape served at /debug/stats.
type Snapshot struct {
	Online            int64   `json:"online"`
	RelayedMessages   uint64  `json:"relayed_messages"`
	RejectedPublishes uint64  `json:"rejected_publishes"`
	DroppedPublishes  uint64  `json:"dropped_publishes"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	RSSMb             uint64  `json:"rss_mb"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// Snapshot collects the current counters plus Go runtime and OS process
// metrics. Process metrics are best-effort: a collection failure leaves the
// fields at zero rather than failing the endpoint.
func (s *HubStats) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snapshot := Snapshot{
		Online:            s.online.Load(),
		RelayedMessages:   s.RelayedMessages.Load(),
		RejectedPublishes: s.RejectedPublishes.Load(),
		DroppedPublishes:  s.DroppedPublishes.Load(),
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			snapshot.RSSMb = mem.RSS / 1024 / 1024
		}
		if cpu, err := p.CPUPercent(); err == nil {
			snapshot.CPUPercent = cpu
		}
	}
	return snapshot
}
