// internal/workers/prediction/predict-ponto-de-virada/handler.go
package predictpontodevirada

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/history"
	"passos-predictor/internal/predictor"
)

const (
	TaskType = "predict-ponto-de-virada"
)

type Handler struct {
	config    *Config
	predictor *predictor.Service
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, pred *predictor.Service, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		predictor: pred,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput([]byte(job.Variables))
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if h.completeJob(ctx, client, job, output) {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}
}

// ParseInput decodes and schema-checks the job variables.
func ParseInput(variables []byte) (*Input, error) {
	rec, err := predictor.ParseRecord(variables)
	if err != nil {
		return nil, err
	}
	return &Input{StudentRecord: rec}, nil
}

// Execute scores the record and flattens the outcome into job variables.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out, err := h.predictor.Predict(ctx, input.StudentRecord, history.SourceWorker)
	if err != nil {
		return nil, err
	}

	h.logger.Info("prediction completed", map[string]interface{}{
		"probability": out.Prediction.Probability,
		"label":       out.Prediction.Label,
		"cached":      out.Cached,
	})

	return &Output{
		Probability:     out.Prediction.Probability,
		Label:           out.Prediction.Label,
		LabelText:       out.Prediction.LabelText,
		Verdict:         out.Verdict.Level,
		ModelName:       out.Prediction.ModelName,
		Recommendations: out.Advice.Messages(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) bool {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return false
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return false
	}
	return true
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := errors.AsStandardError(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
