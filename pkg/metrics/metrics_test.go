package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the merit namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.awardsTotal.WithLabelValues("awarded", "").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "merit_engine_awards_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels reflect the options", func() {
				manager.sheltersGranted.Add(2)
				expected := `
# HELP test_unit_shelters_granted_total Shelter credits granted
# TYPE test_unit_shelters_granted_total counter
test_unit_shelters_granted_total{env="test"} 2
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_shelters_granted_total"), ShouldBeNil)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording award outcomes", func() {
			before := testutil.ToFloat64(globalManager.awardsTotal.WithLabelValues("skipped", "cap"))
			RecordAward("skipped", "cap")
			RecordAward("skipped", "cap")

			Convey("Then the labelled counter advances", func() {
				So(testutil.ToFloat64(globalManager.awardsTotal.WithLabelValues("skipped", "cap")), ShouldEqual, before+2)
			})
		})

		Convey("When recording zero points", func() {
			before := testutil.ToFloat64(globalManager.pointsAwarded.WithLabelValues("pilot"))
			RecordPointsAwarded("pilot", 0)
			RecordPointsAwarded("pilot", 23)

			Convey("Then only positive amounts are added", func() {
				So(testutil.ToFloat64(globalManager.pointsAwarded.WithLabelValues("pilot")), ShouldEqual, before+23)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateWorkerCount(3)
			UpdateDedupeCacheSize(11)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.dedupeCacheSize), ShouldEqual, 11)
			})
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
