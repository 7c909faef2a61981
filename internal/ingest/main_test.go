package ingest

import (
	"testing"

	"go.uber.org/goleak"
)

// IngestBatch runs a worker pool; every worker must exit before the
// call returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
