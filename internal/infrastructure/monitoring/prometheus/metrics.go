package prometheus

import (
	"database/sql"
	"strconv"
	"time"
)

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultStageDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60}
	DefaultRunDurationBuckets   = []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	DefaultComponentBuckets     = []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000}
)

// TakeoffMetrics is the service metric set.  It satisfies the recognition,
// deduction and run telemetry interfaces of the takeoff pipeline.
type TakeoffMetrics struct {
	LabelsTotal        CounterVec
	ComponentsTotal    CounterVec
	VerificationsTotal CounterVec
	PriceLookupsTotal  CounterVec
	StageDuration      HistogramVec
	DeductionsTotal    CounterVec
	DeductedAmount     CounterVec

	TakeoffsTotal     CounterVec
	TakeoffDuration   HistogramVec
	TakeoffComponents HistogramVec
	PriceTableReloads CounterVec
	PriceTableItems   GaugeVec

	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	MessagesTotal     CounterVec
	CacheAccessTotal  CounterVec
	DBOpenConnections GaugeVec
	DBInUse           GaugeVec
	HealthCheckStatus GaugeVec
}

// NewTakeoffMetrics registers every metric on collector.
func NewTakeoffMetrics(c MetricsCollector) *TakeoffMetrics {
	return &TakeoffMetrics{
		LabelsTotal:        c.RegisterCounter("labels_total", "Annotations processed, by whether a rule matched", "matched"),
		ComponentsTotal:    c.RegisterCounter("components_total", "Components recognised", "kind", "status"),
		VerificationsTotal: c.RegisterCounter("verifications_total", "Second-opinion verifications", "outcome"),
		PriceLookupsTotal:  c.RegisterCounter("price_lookups_total", "Unit price lookups", "result"),
		StageDuration:      c.RegisterHistogram("stage_duration_seconds", "Pipeline stage duration", DefaultStageDurationBuckets, "stage"),
		DeductionsTotal:    c.RegisterCounter("deductions_total", "Deductions applied", "rule"),
		DeductedAmount:     c.RegisterCounter("deducted_amount_total", "Area or volume removed by deductions", "rule"),

		TakeoffsTotal:     c.RegisterCounter("takeoffs_total", "Takeoff runs", "status"),
		TakeoffDuration:   c.RegisterHistogram("takeoff_duration_seconds", "Takeoff run duration", DefaultRunDurationBuckets, "status"),
		TakeoffComponents: c.RegisterHistogram("takeoff_components", "Components per takeoff", DefaultComponentBuckets, "kind"),
		PriceTableReloads: c.RegisterCounter("price_table_reloads_total", "Price table reloads", "result"),
		PriceTableItems:   c.RegisterGauge("price_table_items", "Items in the loaded price table"),

		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  c.RegisterGauge("http_active_requests", "In-flight HTTP requests"),

		MessagesTotal:     c.RegisterCounter("messages_total", "Broker messages handled", "topic", "result"),
		CacheAccessTotal:  c.RegisterCounter("cache_access_total", "Cache lookups", "cache", "result"),
		DBOpenConnections: c.RegisterGauge("db_open_connections", "Open database connections", "db"),
		DBInUse:           c.RegisterGauge("db_in_use_connections", "Database connections in use", "db"),
		HealthCheckStatus: c.RegisterGauge("health_check_status", "Dependency health (1 up, 0 down)", "component"),
	}
}

func (m *TakeoffMetrics) RecordLabel(matched bool) {
	m.LabelsTotal.WithLabelValues(strconv.FormatBool(matched)).Inc()
}

func (m *TakeoffMetrics) RecordComponent(kind, status string) {
	m.ComponentsTotal.WithLabelValues(kind, status).Inc()
}

func (m *TakeoffMetrics) RecordVerification(outcome string) {
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *TakeoffMetrics) RecordPriceLookup(hit bool) {
	m.PriceLookupsTotal.WithLabelValues(hitLabel(hit)).Inc()
}

func (m *TakeoffMetrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *TakeoffMetrics) RecordDeduction(rule string, amount float64) {
	m.DeductionsTotal.WithLabelValues(rule).Inc()
	if amount > 0 {
		m.DeductedAmount.WithLabelValues(rule).Add(amount)
	}
}

func (m *TakeoffMetrics) RecordTakeoff(status string, d time.Duration, components, _ int) {
	m.TakeoffsTotal.WithLabelValues(status).Inc()
	m.TakeoffDuration.WithLabelValues(status).Observe(d.Seconds())
	m.TakeoffComponents.WithLabelValues("all").Observe(float64(components))
}

// RecordPriceReload is a price table reload hook.
func (m *TakeoffMetrics) RecordPriceReload(items int, err error) {
	if err != nil {
		m.PriceTableReloads.WithLabelValues("failure").Inc()
		return
	}
	m.PriceTableReloads.WithLabelValues("success").Inc()
	m.PriceTableItems.WithLabelValues().Set(float64(items))
}

func (m *TakeoffMetrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *TakeoffMetrics) RecordMessage(topic, result string) {
	m.MessagesTotal.WithLabelValues(topic, result).Inc()
}

func (m *TakeoffMetrics) RecordCacheAccess(cache string, hit bool) {
	m.CacheAccessTotal.WithLabelValues(cache, hitLabel(hit)).Inc()
}

func (m *TakeoffMetrics) ObserveDBStats(db string, s sql.DBStats) {
	m.DBOpenConnections.WithLabelValues(db).Set(float64(s.OpenConnections))
	m.DBInUse.WithLabelValues(db).Set(float64(s.InUse))
}

func (m *TakeoffMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
