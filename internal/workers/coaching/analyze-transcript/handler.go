// internal/workers/coaching/analyze-transcript/handler.go
package analyzetranscript

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"funnel-coach/internal/common/chunking"
	"funnel-coach/internal/common/database"
	apperrors "funnel-coach/internal/common/errors"
	"funnel-coach/internal/common/llm"
	"funnel-coach/internal/common/logger"
	"funnel-coach/internal/common/metrics"
	"funnel-coach/internal/common/resilience"
	"funnel-coach/internal/common/validation"
	"funnel-coach/internal/models"
)

const TaskType = "analyze-transcript"

var tracer = otel.Tracer("funnel-coach/analyze-transcript")

// ResultCache stores successful replies by prompt.
type ResultCache interface {
	Get(ctx context.Context, model, prompt string) (*database.CachedResult, bool, error)
	Put(ctx context.Context, model, prompt, text string) error
}

// Recorder receives one observation per finished analysis.
type Recorder interface {
	RecordAnalysis(ctx context.Context, outcome string)
	RecordAnalysisDuration(ctx context.Context, duration time.Duration, outcome string)
}

type Handler struct {
	config    *Config
	generator llm.Generator
	validator *validation.RequestValidator
	errors    *apperrors.ErrorHandler
	cache     ResultCache
	recorder  Recorder
	logger    logger.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithCache enables the result cache.
func WithCache(c ResultCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithRecorder adds an observer for completed analyses.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// NewHandler builds the analyze handler. generator is nil when no API key is
// configured; every analysis then fails with SERVICE_NOT_CONFIGURED.
func NewHandler(cfg *Config, generator llm.Generator, log logger.Logger, opts ...Option) (*Handler, error) {
	v, err := validation.NewRequestValidator(cfg.limits())
	if err != nil {
		return nil, err
	}

	h := &Handler{
		config:    cfg,
		generator: generator,
		validator: v,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	h.errors = apperrors.NewErrorHandler(h.logger)
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves POST /analyze.
func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	log := logger.FromContext(c.Request.Context(), h.logger)

	// The upstream call outlives a disconnected client.
	ctx := logger.WithContext(context.WithoutCancel(c.Request.Context()), log)

	outcome, err := h.Execute(ctx, req)
	if err != nil {
		h.observe(ctx, start, "error")
		h.fail(c, err)
		return
	}

	h.observe(ctx, start, string(outcome.Kind))
	c.JSON(http.StatusOK, outcome.Response())
}

// readRequest runs the validator in order. Nothing downstream is touched
// until it returns a request.
func (h *Handler) readRequest(c *gin.Context) (*models.AnalysisRequest, error) {
	if err := h.validator.CheckContentLength(c.Request.ContentLength); err != nil {
		return nil, err
	}
	if err := h.validator.CheckContentType(c.GetHeader("Content-Type")); err != nil {
		return nil, err
	}

	if h.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxBodyBytes)
	}
	body, err := h.validator.ReadBody(c.Request.Body)
	if err != nil {
		return nil, err
	}
	return h.validator.ValidateBody(body)
}

func (h *Handler) fail(c *gin.Context, err error) {
	metrics.AnalysesFailed.WithLabelValues(string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleRequestError(c, err)
}

func (h *Handler) observe(ctx context.Context, start time.Time, outcome string) {
	elapsed := time.Since(start)
	metrics.AnalysesCompleted.WithLabelValues(outcome).Inc()
	metrics.AnalysisDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if h.recorder != nil {
		h.recorder.RecordAnalysis(ctx, outcome)
		h.recorder.RecordAnalysisDuration(ctx, elapsed, outcome)
	}
}

// Execute analyses a validated request. Errors are *apperrors.StandardError.
func (h *Handler) Execute(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisOutcome, error) {
	log := logger.FromContext(ctx, h.logger)

	if h.generator == nil {
		log.Error("Gemini API key not configured", nil)
		return nil, apperrors.NewServiceNotConfiguredError()
	}

	ctx, span := tracer.Start(ctx, "analysis.execute", trace.WithAttributes(
		attribute.String("analysis.rubric", RubricVersion),
	))
	defer span.End()

	metrics.AnalysesActive.Inc()
	defer metrics.AnalysesActive.Dec()

	transcript := h.preflight(log, req.Transcript)
	prompt, err := BuildPrompt(transcript, req.SalesRepNames, req.MerchantNames)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	cacheKey := prompt
	if text, ok := h.lookup(ctx, log, cacheKey); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		outcome := models.AnalysisOutcome{Kind: models.OutcomeSuccess, Text: text}
		return &outcome, nil
	}

	policy := h.policy()
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("API call failed, retrying", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": policy.MaxAttempts,
			"nextRetryIn": delay.String(),
			"error":       err,
		})
	}

	gen, err := resilience.Invoke(ctx, policy, func(ctx context.Context, attempt int) (*llm.Generation, error) {
		if attempt > 1 && chunking.IsTruncated(transcript, h.config.RetryTruncateChars) {
			transcript = chunking.Truncate(transcript, h.config.RetryTruncateChars, chunking.RetryTruncatedMarker)
			metrics.TranscriptTruncations.WithLabelValues(metrics.StageRetry).Inc()
			rebuilt, err := BuildPrompt(transcript, req.SalesRepNames, req.MerchantNames)
			if err != nil {
				return nil, err
			}
			prompt = rebuilt
			log.Warn("Transcript shortened before retry", map[string]interface{}{
				"attempt":    attempt,
				"truncateTo": h.config.RetryTruncateChars,
			})
		}

		gen, err := h.generator.Generate(ctx, prompt)
		metrics.UpstreamAttempts.WithLabelValues(attemptResult(ctx, err)).Inc()
		if err != nil {
			return nil, err
		}
		return gen, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failed")
		return nil, h.upstreamError(log, err)
	}

	outcome := Classify(gen)
	span.SetAttributes(attribute.String("analysis.outcome", string(outcome.Kind)))

	switch {
	case outcome.Kind == models.OutcomeEmptyResponse:
		log.Error("Gemini API returned an empty response", map[string]interface{}{
			"blockReason": outcome.BlockReason,
		})
		return nil, apperrors.NewEmptyResponseError(outcome.BlockReason)
	case outcome.IsSentinel():
		log.Info("Model declined to evaluate the call", map[string]interface{}{
			"outcome": string(outcome.Kind),
		})
	default:
		h.store(ctx, log, cacheKey, outcome.Text)
		log.Info("Analysis completed", map[string]interface{}{
			"responseChars": chunking.Len(outcome.Text),
			"rubric":        RubricVersion,
		})
	}

	return &outcome, nil
}

// policy is the resilience default overridden by every configured value.
func (h *Handler) policy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Name = "gemini.generate"
	p.IsPermanent = llm.IsAuthError
	if h.config.MaxAttempts > 0 {
		p.MaxAttempts = h.config.MaxAttempts
	}
	if h.config.AttemptTimeout > 0 {
		p.AttemptTimeout = h.config.AttemptTimeout
	}
	if h.config.BackoffFactor > 0 {
		p.BackoffFactor = h.config.BackoffFactor
	}
	return p
}

// preflight records how many segments the transcript spans and cuts it to
// the first-attempt limit.
func (h *Handler) preflight(log logger.Logger, transcript string) string {
	if h.config.ChunkChars > 0 {
		chunks := chunking.Chunk(transcript, h.config.ChunkChars)
		metrics.TranscriptChunks.Observe(float64(len(chunks)))
		if len(chunks) > 1 {
			log.Info("Transcript spans several segments", map[string]interface{}{
				"segments":  len(chunks),
				"chunkSize": h.config.ChunkChars,
			})
		}
	}

	if !chunking.IsTruncated(transcript, h.config.TruncateChars) {
		return transcript
	}
	truncated := chunking.Truncate(transcript, h.config.TruncateChars, chunking.TruncatedMarker)
	metrics.TranscriptTruncations.WithLabelValues(metrics.StagePreflight).Inc()
	log.Warn("Transcript truncated", map[string]interface{}{
		"originalChars":  chunking.Len(transcript),
		"truncatedChars": chunking.Len(truncated),
	})
	return truncated
}

func (h *Handler) lookup(ctx context.Context, log logger.Logger, prompt string) (string, bool) {
	if h.cache == nil {
		return "", false
	}
	res, found, err := h.cache.Get(ctx, h.generator.Model(), prompt)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
		log.Warn("Result cache lookup failed", map[string]interface{}{"error": err})
		return "", false
	case !found:
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return "", false
	}
	metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	log.Debug("Result cache hit", nil)
	return res.Text, true
}

func (h *Handler) store(ctx context.Context, log logger.Logger, prompt, text string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Put(ctx, h.generator.Model(), prompt, text); err != nil {
		log.Warn("Result cache write failed", map[string]interface{}{"error": err})
	}
}

// upstreamError converts an invoker failure into the error the caller sees.
func (h *Handler) upstreamError(log logger.Logger, err error) error {
	fields := map[string]interface{}{"error": err}

	var timeout *resilience.TimeoutError
	switch {
	case errors.As(err, &timeout):
		fields["attempt"] = timeout.Attempt
		log.Error("Gemini API call timed out", fields)
		return apperrors.NewUpstreamTimeoutError(timeout.Attempt, err)
	case errors.Is(err, resilience.ErrTimeout):
		log.Error("Gemini API call timed out", fields)
		return apperrors.NewUpstreamTimeoutError(1, err)
	case llm.IsAuthError(err):
		log.Error("Gemini API rejected the credential", fields)
		return apperrors.NewUpstreamAuthError(err)
	}

	log.Error("Error processing request", fields)
	cause := err
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		cause = exhausted.Last
	}
	return apperrors.NewUpstreamCallError(cause)
}

func attemptResult(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return metrics.AttemptSuccess
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return metrics.AttemptTimeout
	case llm.IsAuthError(err):
		return metrics.AttemptAuth
	default:
		return metrics.AttemptError
	}
}
