// Package metrics holds the process-wide counters exposed on /metrics.
package metrics

import (
	"net/http"

	vm "github.com/VictoriaMetrics/metrics"
)

var (
	DownloadsStarted   = vm.NewCounter("offline_downloads_started_total")
	DownloadsSucceeded = vm.NewCounter("offline_downloads_succeeded_total")
	DownloadsFailed    = vm.NewCounter("offline_downloads_failed_total")
	ImagesSkipped      = vm.NewCounter("offline_download_images_skipped_total")

	BooksExpired = vm.NewCounter("offline_books_expired_total")
	BooksEvicted = vm.NewCounter("offline_books_evicted_total")

	OutboxSucceeded = vm.NewCounter(`offline_outbox_items_total{result="success"}`)
	OutboxFailed    = vm.NewCounter(`offline_outbox_items_total{result="failed"}`)
	OutboxSkipped   = vm.NewCounter(`offline_outbox_items_total{result="skipped"}`)

	ReadsFromNetwork = vm.NewCounter(`offline_reads_total{source="network"}`)
	ReadsFromCache   = vm.NewCounter(`offline_reads_total{source="cache"}`)
	ReadsMissed      = vm.NewCounter(`offline_reads_total{source="miss"}`)

	AssetHits   = vm.NewCounter(`offline_asset_requests_total{result="hit"}`)
	AssetMisses = vm.NewCounter(`offline_asset_requests_total{result="miss"}`)
)

// Handler writes all counters in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		vm.WritePrometheus(w, false)
	})
}
