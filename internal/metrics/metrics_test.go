package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "200"))
	RecordAPIRequest("GET", 200, 10*time.Millisecond)
	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "200")); got != before+1 {
		t.Errorf("api_requests_total = %v, want %v", got, before+1)
	}

	throttled := testutil.ToFloat64(apiThrottledTotal)
	RecordAPIRequest("GET", 429, time.Millisecond)
	if got := testutil.ToFloat64(apiThrottledTotal); got != throttled+1 {
		t.Errorf("api_throttled_total = %v, want %v", got, throttled+1)
	}
}

func TestRecordTransferFinished(t *testing.T) {
	bytesBefore := testutil.ToFloat64(transferBytesTotal.WithLabelValues("upload"))
	RecordTransferFinished("upload", "completed", 2048)
	RecordTransferFinished("upload", "error", 0)
	if got := testutil.ToFloat64(transferBytesTotal.WithLabelValues("upload")); got != bytesBefore+2048 {
		t.Errorf("transfer_bytes_total = %v, want %v", got, bytesBefore+2048)
	}
}

func TestSetAssetLoaderState(t *testing.T) {
	SetAssetLoaderState(2, 5)
	if got := testutil.ToFloat64(assetLoaderActive); got != 2 {
		t.Errorf("active = %v, want 2", got)
	}
	if got := testutil.ToFloat64(assetLoaderQueued); got != 5 {
		t.Errorf("queued = %v, want 5", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordAssetLoad(true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "capishare_asset_loads_total") {
		t.Error("metrics output missing capishare_asset_loads_total")
	}
}
