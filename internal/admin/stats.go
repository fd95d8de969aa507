package admin

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats reports host CPU/memory plus counters from the DNS registry/cache,
// peer registry, search index, and crawls run so far — mirroring the
// teacher's handlers.Stats, generalized from DNS-server query counters to
// RedNet-Explorer's subsystem counters.
func (s *Server) Stats(c *gin.Context) {
	uptime := s.uptime()

	memStats := MemoryStats{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vmStat.Total) / 1024 / 1024
		memStats.FreeMB = float64(vmStat.Available) / 1024 / 1024
		memStats.UsedMB = float64(vmStat.Used) / 1024 / 1024
		memStats.UsedPercent = vmStat.UsedPercent
	}

	cpuStats := CPUStats{NumCPU: runtime.NumCPU()}
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		cpuStats.UsedPercent = pct[0]
		cpuStats.IdlePercent = 100.0 - pct[0]
	}

	resp := ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     s.startTime,
		CPU:           cpuStats,
		Memory:        memStats,
		Peers:         s.peerStats(),
		DNS:           s.dnsStats(),
		Index:         s.indexStats(),
		Crawler:       s.crawlerStats(),
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) peerStats() PeerStats {
	if s.sources.Peers == nil {
		return PeerStats{}
	}
	return PeerStats{Connected: s.sources.Peers.PeerCount()}
}

func (s *Server) dnsStats() DNSStats {
	var d DNSStats
	if s.sources.Local != nil {
		records := s.sources.Local.ListLocal()
		d.LocalRecords = len(records)
		for _, r := range records {
			if r.Shadowed {
				d.ShadowedLocal++
			}
		}
	}
	if s.sources.Cache != nil {
		d.CachedRecords = s.sources.Cache.Len()
	}
	if s.sources.Convergence != nil {
		d.ConvergenceRun = int(s.sources.Convergence.Status().RunCount)
	}
	return d
}

func (s *Server) indexStats() IndexStats {
	if s.sources.Index == nil {
		return IndexStats{}
	}
	st := s.sources.Index.Stats()
	return IndexStats{Documents: st.Documents, Terms: st.Terms, Postings: st.Postings}
}

func (s *Server) crawlerStats() CrawlerStats {
	if s.sources.Crawler == nil {
		return CrawlerStats{}
	}
	return s.sources.Crawler()
}
