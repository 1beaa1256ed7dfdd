package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordWrite(t *testing.T) {
	before := testutil.ToFloat64(documentWritesTotal.WithLabelValues("put", "ok"))
	RecordWrite("put", "ok")
	RecordWrite("put", "ok")
	after := testutil.ToFloat64(documentWritesTotal.WithLabelValues("put", "ok"))
	assert.Equal(t, before+2, after)
}

func TestRecordSkipped(t *testing.T) {
	before := testutil.ToFloat64(mergeSkippedTotal.WithLabelValues("id_mismatch"))
	RecordSkipped("id_mismatch")
	assert.Equal(t, before+1, testutil.ToFloat64(mergeSkippedTotal.WithLabelValues("id_mismatch")))
}

func TestRecordReadRepairAndRequest(t *testing.T) {
	before := testutil.ToFloat64(readRepairsTotal.WithLabelValues("repaired"))
	RecordReadRepair("repaired")
	assert.Equal(t, before+1, testutil.ToFloat64(readRepairsTotal.WithLabelValues("repaired")))

	before = testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("Get", "NOT_FOUND"))
	RecordRequest("Get", "NOT_FOUND")
	assert.Equal(t, before+1, testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("Get", "NOT_FOUND")))
}

func TestObserveConflicts(t *testing.T) {
	ObserveConflicts(3)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(documentConflicts), 1)
}
