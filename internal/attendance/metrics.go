package attendance

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricCheckinsTotal            = "attendance_checkins_total"
	MetricCheckoutsTotal           = "attendance_checkouts_total"
	MetricLocationUnavailableTotal = "attendance_location_unavailable_total"
	MetricCheckinDistanceMeters    = "attendance_checkin_distance_meters"
)

// Metrics are created unregistered; call Register once at startup.
type Metrics struct {
	checkins    *prometheus.CounterVec
	checkouts   prometheus.Counter
	unavailable prometheus.Counter
	distance    prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		checkins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCheckinsTotal,
				Help: "Check-ins recorded, by whether the position was inside the zone",
			},
			[]string{"location_valid"},
		),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCheckoutsTotal,
			Help: "Checkouts recorded",
		}),
		unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLocationUnavailableTotal,
			Help: "Check-in or checkout attempts refused because no position could be obtained",
		}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCheckinDistanceMeters,
			Help:    "Distance between the check-in position and the zone center",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.checkins, m.checkouts, m.unavailable, m.distance}
}

func (m *Metrics) observeCheckin(valid bool, distance *float64) {
	m.checkins.WithLabelValues(strconv.FormatBool(valid)).Inc()
	if distance != nil {
		m.distance.Observe(*distance)
	}
}

func (m *Metrics) observeCheckout() { m.checkouts.Inc() }

func (m *Metrics) observeUnavailable() { m.unavailable.Inc() }
