package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	crawlAttempts   atomic.Int64
	crawlSucceeded  atomic.Int64
	crawlPartial    atomic.Int64
	crawlFailed     atomic.Int64
	itemsFetched    atomic.Int64
	itemsIngested   atomic.Int64
	webhookAccepted atomic.Int64
	webhookRejected atomic.Int64
)

// ObserveCrawl tallies one finished crawl attempt.
func ObserveCrawl(status string, fetched, inserted int) {
	crawlAttempts.Add(1)
	switch status {
	case "success":
		crawlSucceeded.Add(1)
	case "partial":
		crawlPartial.Add(1)
	case "failed":
		crawlFailed.Add(1)
	}
	itemsFetched.Add(int64(fetched))
	itemsIngested.Add(int64(inserted))
}

// ObserveWebhook tallies one push-ingestion request.
func ObserveWebhook(accepted bool) {
	if accepted {
		webhookAccepted.Add(1)
	} else {
		webhookRejected.Add(1)
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "curatewise_crawl_attempts_total", "Crawl attempts completed since process start.", crawlAttempts.Load())
	writeCounter(w, "curatewise_crawl_succeeded_total", "Crawl attempts that ingested new content.", crawlSucceeded.Load())
	writeCounter(w, "curatewise_crawl_partial_total", "Crawl attempts that ran cleanly but found nothing new.", crawlPartial.Load())
	writeCounter(w, "curatewise_crawl_failed_total", "Crawl attempts that failed.", crawlFailed.Load())
	writeCounter(w, "curatewise_items_fetched_total", "Content items returned by connectors.", itemsFetched.Load())
	writeCounter(w, "curatewise_items_ingested_total", "Content items newly persisted.", itemsIngested.Load())
	writeCounter(w, "curatewise_webhook_accepted_total", "Push-ingestion payloads accepted.", webhookAccepted.Load())
	writeCounter(w, "curatewise_webhook_rejected_total", "Push-ingestion payloads rejected.", webhookRejected.Load())
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
