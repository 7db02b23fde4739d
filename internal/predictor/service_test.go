package predictor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/history"
	"passos-predictor/internal/inference/inferencetest"
	"passos-predictor/internal/models"
)

type recordingStore struct {
	history.NopStore
	saved []history.Entry
	err   error
}

func (s *recordingStore) Save(ctx context.Context, entries []history.Entry) error {
	s.saved = append(s.saved, entries...)
	return s.err
}

func TestService_Predict(t *testing.T) {
	store := &recordingStore{}
	svc := NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewTestLogger(t), WithStore(store))

	out, err := svc.Predict(context.Background(), models.DefaultRecord(), history.SourceIndividual)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Prediction.Label)
	assert.Equal(t, "Sim", out.Prediction.LabelText)
	assert.InDelta(t, 0.5987, out.Prediction.Probability, 1e-4)
	assert.Equal(t, "59.9%", out.Prediction.Percent())
	assert.Equal(t, "40.1%", out.Prediction.PercentNo())
	assert.Equal(t, "ALTA", out.Verdict.Level)
	assert.True(t, out.Advice.Healthy)
	assert.Len(t, out.Cards, 7)
	assert.False(t, out.Cached)

	require.Len(t, store.saved, 1)
	assert.Equal(t, history.SourceIndividual, store.saved[0].Source)
	assert.Equal(t, "Logistic Regression", store.saved[0].ModelName)
}

func TestService_PredictLowProbability(t *testing.T) {
	svc := NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewNoOpLogger())

	rec := models.DefaultRecord()
	rec.IPV, rec.IEG, rec.Defas = 4, 5, 2

	out, err := svc.Predict(context.Background(), rec, history.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Prediction.Label)
	assert.Equal(t, "BAIXA", out.Verdict.Level)
	require.Len(t, out.Advice.Items, 3)
	assert.Equal(t, []string{"IEG", "Defas", "IPV"},
		[]string{out.Advice.Items[0].Indicator, out.Advice.Items[1].Indicator, out.Advice.Items[2].Indicator})
}

func TestService_PredictUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewNoOpLogger(),
		WithCache(history.NewRedisCache(client, time.Minute)))

	first, err := svc.Predict(context.Background(), models.DefaultRecord(), history.SourceIndividual)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Predict(context.Background(), models.DefaultRecord(), history.SourceIndividual)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Prediction.ID, second.Prediction.ID)
	assert.Equal(t, first.Prediction.Probability, second.Prediction.Probability)
}

func TestService_PredictCacheDownStillScores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	svc := NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewNoOpLogger(),
		WithCache(history.NewRedisCache(client, time.Minute)),
		WithStore(&recordingStore{err: errors.New("db down")}))

	out, err := svc.Predict(context.Background(), models.DefaultRecord(), history.SourceIndividual)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Prediction.Label)
}

func TestService_PredictInvalidRecord(t *testing.T) {
	svc := NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewNoOpLogger())

	rec := models.DefaultRecord()
	rec.Pedra = "Diamante"
	_, err := svc.Predict(context.Background(), rec, history.SourceAPI)
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeInvalidStudentRecord))
	assert.Contains(t, err.Error(), "pedra")
}

func TestService_PredictModelNotLoaded(t *testing.T) {
	svc := NewService(inferencetest.EmptyLoader(), logger.NewNoOpLogger())
	_, err := svc.Predict(context.Background(), models.DefaultRecord(), history.SourceIndividual)
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeModelNotLoaded))
}
