package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue sums the counter samples of a family whose labels match.
func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TradesParsed.Add(3)
	m.ParseWarnings.WithLabelValues("trades").Inc()

	if got := counterValue(t, reg, "test_ledger_trades_parsed_total", nil); got != 3 {
		t.Errorf("expected 3 trades parsed, got %v", got)
	}
	if got := counterValue(t, reg, "test_ledger_parse_warnings_total", map[string]string{"kind": "trades"}); got != 1 {
		t.Errorf("expected 1 warning, got %v", got)
	}
}

func TestRecordDBQuery_CountsErrors(t *testing.T) {
	labels := map[string]string{"database": "postgres", "operation": "unit_test"}
	name := "modquant_lab_database_query_errors_total"
	before := counterValue(t, prometheus.DefaultGatherer, name, labels)

	RecordDBQuery("postgres", "unit_test", 0.01, nil)
	RecordDBQuery("postgres", "unit_test", 0.01, errors.New("boom"))

	if got := counterValue(t, prometheus.DefaultGatherer, name, labels) - before; got != 1 {
		t.Errorf("expected one error recorded, got %v", got)
	}
}

func TestRecordBacktest(t *testing.T) {
	labels := map[string]string{"completed": "false"}
	name := "modquant_lab_backtest_streaks_total"
	before := counterValue(t, prometheus.DefaultGatherer, name, labels)

	RecordBacktest("SINGLE_WIN", "success", 4, 1, 1)

	if got := counterValue(t, prometheus.DefaultGatherer, name, labels) - before; got != 1 {
		t.Errorf("expected one unfinished streak recorded, got %v", got)
	}
}
