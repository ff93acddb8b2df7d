package prometheus

import (
	"database/sql"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
)

var (
	_ recognizer.Metrics       = (*TakeoffMetrics)(nil)
	_ takeoff.DeductionMetrics = (*TakeoffMetrics)(nil)
	_ takeoff.RunMetrics       = (*TakeoffMetrics)(nil)
)

func newTestMetrics(t *testing.T) (*TakeoffMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewTakeoffMetrics(c), c
}

func TestRecognitionMetrics(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RecordLabel(true)
	m.RecordLabel(true)
	m.RecordLabel(false)
	m.RecordComponent("column", "valid")
	m.RecordVerification("confirmed")
	m.RecordPriceLookup(false)
	m.ObserveStage("recognition", 20*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_labels_total{matched="true"} 2`)
	assert.Contains(t, out, `test_unit_labels_total{matched="false"} 1`)
	assert.Contains(t, out, `test_unit_components_total{kind="column",status="valid"} 1`)
	assert.Contains(t, out, `test_unit_verifications_total{outcome="confirmed"} 1`)
	assert.Contains(t, out, `test_unit_price_lookups_total{result="miss"} 1`)
	assert.Contains(t, out, `test_unit_stage_duration_seconds_count{stage="recognition"} 1`)
}

func TestRecordDeduction(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RecordDeduction("slab_column_overlap", 0.36)
	m.RecordDeduction("slab_column_overlap", 0)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_deductions_total{rule="slab_column_overlap"} 2`)
	assert.Contains(t, out, `test_unit_deducted_amount_total{rule="slab_column_overlap"} 0.36`)
}

func TestRecordTakeoff(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RecordTakeoff("completed", 2*time.Second, 12, 1)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_takeoffs_total{status="completed"} 1`)
	assert.Contains(t, out, `test_unit_takeoff_duration_seconds_sum{status="completed"} 2`)
	assert.Contains(t, out, `test_unit_takeoff_components_sum{kind="all"} 12`)
}

func TestRecordPriceReload(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RecordPriceReload(42, nil)
	m.RecordPriceReload(0, stderrors.New("bad yaml"))

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_price_table_reloads_total{result="success"} 1`)
	assert.Contains(t, out, `test_unit_price_table_reloads_total{result="failure"} 1`)
	assert.Contains(t, out, "test_unit_price_table_items 42")
}

func TestInfrastructureMetrics(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RecordHTTPRequest("POST", "/api/v1/takeoffs", 201, 150*time.Millisecond)
	m.RecordMessage("takeoff.requested", "success")
	m.RecordCacheAccess("price", true)
	m.ObserveDBStats("postgres", sql.DBStats{OpenConnections: 4, InUse: 1})
	m.SetHealth("redis", false)
	m.SetHealth("postgres", true)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/takeoffs",status_code="201"} 1`)
	assert.Contains(t, out, `test_unit_messages_total{result="success",topic="takeoff.requested"} 1`)
	assert.Contains(t, out, `test_unit_cache_access_total{cache="price",result="hit"} 1`)
	assert.Contains(t, out, `test_unit_db_open_connections{db="postgres"} 4`)
	assert.Contains(t, out, `test_unit_health_check_status{component="redis"} 0`)
	assert.Contains(t, out, `test_unit_health_check_status{component="postgres"} 1`)
}

func TestUnusedMetricsAreNotExposed(t *testing.T) {
	_, c := newTestMetrics(t)
	assert.False(t, strings.Contains(scrapeMetrics(t, c), "test_unit_takeoffs_total{"))
}

//Personal.AI order the ending
