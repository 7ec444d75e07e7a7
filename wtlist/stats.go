package wtlist

import "github.com/prometheus/client_golang/prometheus"

// Stats exposes prometheus gauges/counters for the tables C8/C9 own, the
// way an embedded engine reports its live resource counts for scraping
// rather than logging them.
type Stats struct {
	OpenStreams   prometheus.Gauge
	OpenRequests  prometheus.Gauge
	GapDetections prometheus.Counter
	PostTimeouts  prometheus.Counter
	FTTimeouts    prometheus.Counter
}

func newStats() *Stats {
	return &Stats{
		OpenStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wtlist", Name: "open_item_streams", Help: "Current number of open item streams.",
		}),
		OpenRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wtlist", Name: "open_item_requests", Help: "Current number of open item requests across all streams.",
		}),
		GapDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wtlist", Name: "gap_detections_total", Help: "Broadcast/part sequence gaps detected.",
		}),
		PostTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wtlist", Name: "post_ack_timeouts_total", Help: "Post records that expired without an ack.",
		}),
		FTTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wtlist", Name: "ft_group_timeouts_total", Help: "Fault-tolerance groups that expired without a ping.",
		}),
	}
}

// Register registers every metric with reg, the way a host process wires
// a session's Stats into its own prometheus.Registry.
func (st *Stats) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{st.OpenStreams, st.OpenRequests, st.GapDetections, st.PostTimeouts, st.FTTimeouts} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// refreshStats recomputes the gauges from live table state; called once per
// dispatch tick rather than on every mutation.
func (s *Session) refreshStats() {
	s.stats.OpenStreams.Set(float64(len(s.items.byID)))
	n := 0
	for _, st := range s.items.byID {
		n += st.requestCount()
	}
	s.stats.OpenRequests.Set(float64(n))
}
