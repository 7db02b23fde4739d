package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePredictions(t *testing.T) {
	yes := testutil.ToFloat64(PredictionsTotal.WithLabelValues(ModeBatch, "1"))
	no := testutil.ToFloat64(PredictionsTotal.WithLabelValues(ModeBatch, "0"))

	ObservePredictions(ModeBatch, []int{1, 0, 1, 1})

	assert.Equal(t, yes+3, testutil.ToFloat64(PredictionsTotal.WithLabelValues(ModeBatch, "1")))
	assert.Equal(t, no+1, testutil.ToFloat64(PredictionsTotal.WithLabelValues(ModeBatch, "0")))
}
