// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/config"
	"passos-predictor/internal/common/database"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/history"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/models"
	"passos-predictor/internal/predictor"
	"passos-predictor/internal/web"
)

const (
	modelPath    = "../../models/pipeline_completo.json"
	metadataPath = "../../models/feature_names.json"
)

var zapLog *zap.Logger

// The suite talks to real PostgreSQL, Redis and Elasticsearch instances
// (docker compose up) and only runs with E2E=1.
func TestMain(m *testing.M) {
	if os.Getenv("E2E") != "1" {
		fmt.Println("E2E not set, skipping end-to-end tests")
		os.Exit(0)
	}

	zapLog, _ = zap.NewProduction()
	code := m.Run()
	zapLog.Sync()
	os.Exit(code)
}

type backends struct {
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func (b *backends) Close() {
	b.pg.Close()
	b.redis.Close()
}

func TestFullE2E(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err, "❌ config load failed")

	b := connectAll(t, cfg)
	defer b.Close()

	log := logger.NewZapAdapter(zapLog)
	store := history.NewPostgresStore(b.pg.GetDB())
	require.NoError(t, store.EnsureSchema(context.Background()))

	loader := inference.NewLoader(modelPath, metadataPath, nil, log)
	require.True(t, loader.Load(context.Background()).Loaded(), "❌ pipeline artifact did not load")

	pred := predictor.NewService(loader, log,
		predictor.WithCache(history.NewRedisCache(b.redis.GetClient(), time.Minute)),
		predictor.WithStore(store),
	)
	batchSvc := batch.NewService(loader, log,
		batch.WithStore(store),
		batch.WithIndexer(history.NewESIndexer(b.es.Client, b.es.Index)),
	)
	srv, err := web.NewServer(pred, batchSvc, store, web.Options{}, nil, log)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	t.Run("Ready", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("PredictIsCachedAndLogged", func(t *testing.T) {
		rec := models.DefaultRecord()
		rec.IPV = 8.9 // unique enough to avoid stale cache hits from earlier runs
		rec.IEG = 9.3

		first := postPredict(t, ts.URL, rec)
		second := postPredict(t, ts.URL, rec)

		assert.InDelta(t, first.Prediction.Probability, second.Prediction.Probability, 1e-12)
		assert.True(t, second.Cached, "second prediction should be served from redis")

		exists, err := b.redis.GetClient().Exists(context.Background(), history.CacheKey(rec)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)

		resp, err := http.Get(ts.URL + "/api/v1/history?limit=5")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Entries []history.Entry `json:"entries"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotEmpty(t, body.Entries)
		assert.Equal(t, history.SourceAPI, body.Entries[0].Source)
	})

	t.Run("BatchUploadIsIndexed", func(t *testing.T) {
		var csv bytes.Buffer
		require.NoError(t, batch.WriteTemplate(&csv))

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "turma.csv")
		require.NoError(t, err)
		_, err = fw.Write(csv.Bytes())
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		resp, err := http.Post(ts.URL+"/api/v1/batch", mw.FormDataContentType(), &body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result batch.Result
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 2, result.KPIs.Total)

		// documents are visible after a refresh
		refresh, err := b.es.Client.Indices.Refresh(b.es.Client.Indices.Refresh.WithIndex(b.es.Index))
		require.NoError(t, err)
		refresh.Body.Close()

		res, err := b.es.Client.Count(
			b.es.Client.Count.WithIndex(b.es.Index),
			b.es.Client.Count.WithQuery(fmt.Sprintf("batch_id:%q", result.ID)),
		)
		require.NoError(t, err)
		defer res.Body.Close()

		var count struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.NewDecoder(res.Body).Decode(&count))
		assert.Equal(t, 2, count.Count)
	})
}

func connectAll(t *testing.T, cfg *config.Config) *backends {
	t.Log("🔍 Checking service connectivity...")
	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "❌ PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "❌ PostgreSQL ping failed")
	t.Log("✅ PostgreSQL connected")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "❌ Redis client creation failed")
	require.NoError(t, rdb.Ping(ctx), "❌ Redis ping failed")
	t.Log("✅ Redis connected")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err, "❌ Elasticsearch client creation failed")
	require.NoError(t, es.Ping(ctx), "❌ Elasticsearch ping failed")
	t.Log("✅ Elasticsearch connected")

	return &backends{pg: pg, redis: rdb, es: es}
}

func postPredict(t *testing.T, baseURL string, rec models.StudentRecord) predictor.Outcome {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/v1/predict", "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out predictor.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func BenchmarkPredict(b *testing.B) {
	loader := inference.NewLoader(modelPath, metadataPath, nil, logger.NewNoOpLogger())
	if !loader.Load(context.Background()).Loaded() {
		b.Fatal("pipeline artifact did not load")
	}
	svc := predictor.NewService(loader, logger.NewNoOpLogger())
	rec := models.DefaultRecord()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Predict(context.Background(), rec, history.SourceAPI); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBatchRun(b *testing.B) {
	loader := inference.NewLoader(modelPath, metadataPath, nil, logger.NewNoOpLogger())
	if !loader.Load(context.Background()).Loaded() {
		b.Fatal("pipeline artifact did not load")
	}
	svc := batch.NewService(loader, logger.NewNoOpLogger())
	table := batch.Template()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Run(context.Background(), "turma.csv", table); err != nil {
			b.Fatal(err)
		}
	}
}
