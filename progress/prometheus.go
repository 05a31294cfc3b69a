package progress

import "github.com/prometheus/client_golang/prometheus"

// PrometheusSink mirrors completion events into Prometheus metrics:
// ScanFileCompleted (files and bytes), DatImportCompleted (imports and
// entries), and DatImportSkipped (by reason). Other events, ScanSummary
// included, are not recorded.
type PrometheusSink struct {
	filesProcessed   prometheus.Counter
	bytesProcessed   prometheus.Counter
	entriesImported  prometheus.Counter
	importsCompleted prometheus.Counter
	importsSkipped   *prometheus.CounterVec
}

// NewPrometheusSink registers romshelf's metrics against reg and returns a
// Sink that updates them as events arrive.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		filesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romshelf",
			Subsystem: "scan",
			Name:      "files_processed_total",
			Help:      "Files hashed by the scanner.",
		}),
		bytesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romshelf",
			Subsystem: "scan",
			Name:      "bytes_processed_total",
			Help:      "Bytes hashed by the scanner.",
		}),
		entriesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romshelf",
			Subsystem: "dat_import",
			Name:      "entries_total",
			Help:      "Manifest entries recorded by completed imports.",
		}),
		importsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romshelf",
			Subsystem: "dat_import",
			Name:      "completed_total",
			Help:      "Manifest imports that committed successfully.",
		}),
		importsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "romshelf",
			Subsystem: "dat_import",
			Name:      "skipped_total",
			Help:      "Manifest imports skipped, labeled by reason.",
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{s.filesProcessed, s.bytesProcessed, s.entriesImported, s.importsCompleted, s.importsSkipped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Emit implements Sink.
func (s *PrometheusSink) Emit(ev Event) {
	switch e := ev.(type) {
	case ScanFileCompleted:
		s.filesProcessed.Inc()
		s.bytesProcessed.Add(float64(e.Size))
	case DatImportCompleted:
		s.importsCompleted.Inc()
		s.entriesImported.Add(float64(e.EntryCount))
	case DatImportSkipped:
		s.importsSkipped.WithLabelValues(e.Reason).Inc()
	}
}
