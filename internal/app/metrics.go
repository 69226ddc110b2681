package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/loop"
	"github.com/dshills/waystorm/internal/power"
)

// MetricsServer serves the Prometheus registry over HTTP.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger logrus.FieldLogger
	done   chan struct{}
}

// NewRegistry creates a registry with the process and Go collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return reg
}

// registerLoopMetrics exports the event loop counters.
func registerLoopMetrics(reg prometheus.Registerer, l *loop.Loop) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "loop",
			Name:      "functions_run_total",
			Help:      "Functions run on the main loop.",
		}, func() float64 {
			ran, _ := l.Stats()
			return float64(ran)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "loop",
			Name:      "panics_total",
			Help:      "Recovered panics in functions run on the main loop.",
		}, func() float64 {
			_, panicked := l.Stats()
			return float64(panicked)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "waystorm",
			Subsystem: "loop",
			Name:      "pending",
			Help:      "Functions waiting to run on the main loop.",
		}, func() float64 {
			return float64(l.Pending())
		}),
	)
}

// registerPowerMetrics exports the output blank state.
func registerPowerMetrics(reg prometheus.Registerer, m *power.Manager) {
	blanked := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "waystorm",
		Subsystem: "output",
		Name:      "blanked",
		Help:      "1 while the outputs are blanked.",
	})
	changes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "waystorm",
		Subsystem: "output",
		Name:      "blank_changes_total",
		Help:      "Output blank state changes.",
	})
	reg.MustRegister(blanked, changes)
	set := func(blank bool) {
		if blank {
			blanked.Set(1)
		} else {
			blanked.Set(0)
		}
	}
	set(m.IsBacklightOff())
	m.OnBlankChanged(func(blank bool) {
		changes.Inc()
		set(blank)
	})
}

// StartMetricsServer listens on addr and serves /metrics from g.
func StartMetricsServer(addr string, g prometheus.Gatherer, logger logrus.FieldLogger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	m := &MetricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return m, nil
}

// Addr returns the listening address.
func (m *MetricsServer) Addr() string {
	return m.ln.Addr().String()
}

// Shutdown stops the server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	err := m.srv.Shutdown(ctx)
	<-m.done
	return err
}
