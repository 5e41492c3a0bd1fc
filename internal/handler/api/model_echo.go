package api

import (
	"context"
	"errors"
	"time"

	models "FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/service/metrics"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/services/modeling"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	xlogger "FinSignal/pkg/logger"
	"FinSignal/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ModelHandler exposes the model lifecycle and candle store over HTTP.
type ModelHandler struct {
	logger  *xlogger.Logger
	signals *usecase.SignalUseCase
	candles *usecase.CandlesUseCase
	jobs    queue.Publisher
	rl      *ratelimit.Limiter
	m       *metrics.API
}

// NewModelHandler builds the handler. jobs may be nil, in which case async
// training is refused.
func NewModelHandler(logger *xlogger.Logger, signals *usecase.SignalUseCase, candles *usecase.CandlesUseCase, jobs queue.Publisher, rl *ratelimit.Limiter, m *metrics.API) *ModelHandler {
	return &ModelHandler{logger: logger, signals: signals, candles: candles, jobs: jobs, rl: rl, m: m}
}

func (h *ModelHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/model")
	g.GET("/predict", h.Predict)
	g.POST("/train", h.Train)
	g.POST("/retrain", h.Retrain)
	g.GET("/retrain-due", h.RetrainDue)
	g.GET("/info", h.Info)
	g.POST("/cleanup", h.Cleanup)
	g.GET("/importance", h.Importance)

	c := e.Group("/api/candles")
	c.GET("", h.Candles)
	c.POST("", h.Ingest)
}

func (h *ModelHandler) Predict(c echo.Context) error {
	defer h.m.Observe("predict", time.Now())
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.signals.Predict(c.Request().Context(), query(req.Symbol, req.N, req.TF))
	if err != nil {
		return h.fail(c, "predict", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, sig)
}

type trainAccepted struct {
	JobID string `json:"job_id"`
}

func (h *ModelHandler) Train(c echo.Context) error {
	defer h.m.Observe("train", time.Now())
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP() + ":train") {
		h.logger.Warn("train rate limited", xlogger.String("remote", c.RealIP()))
		return h.fail(c, "train", xhttp.TooManyRequestsError("training rate limit exceeded"))
	}

	if req.Async {
		if h.jobs == nil {
			return h.fail(c, "train", xhttp.ServiceUnavailableError("job queue is not configured"))
		}
		id, err := h.jobs.Enqueue(c.Request().Context(), usecase.TrainJobType, usecase.TrainPayload{
			Symbol: req.Symbol, N: req.N, Timeframe: req.TF, Retrain: req.Retrain,
		})
		if err != nil {
			return h.fail(c, "train", err)
		}
		return xhttp.AcceptedResponse(c, trainAccepted{JobID: id})
	}

	res, err := h.signals.Train(c.Request().Context(), usecase.TrainParams{
		CandleQuery: query(req.Symbol, req.N, req.TF),
		Retrain:     req.Retrain,
	})
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.CreatedResponse(c, res)
}

type retrainResult struct {
	Retrained bool `json:"retrained"`
}

func (h *ModelHandler) Retrain(c echo.Context) error {
	defer h.m.Observe("retrain", time.Now())
	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ran, err := h.signals.MaybeRetrain(c.Request().Context(), query(req.Symbol, req.N, req.TF))
	if err != nil {
		return h.fail(c, "retrain", err)
	}
	return xhttp.SuccessResponse(c, retrainResult{Retrained: ran})
}

type retrainDue struct {
	Due bool `json:"due"`
}

func (h *ModelHandler) RetrainDue(c echo.Context) error {
	return xhttp.SuccessResponse(c, retrainDue{Due: h.signals.RetrainDue()})
}

func (h *ModelHandler) Info(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.signals.Info(c.Request().Context()))
}

type cleanupResult struct {
	Removed int `json:"removed"`
}

func (h *ModelHandler) Cleanup(c echo.Context) error {
	req := &models.CleanupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, cleanupResult{Removed: h.signals.Cleanup(c.Request().Context(), req.Keep)})
}

func (h *ModelHandler) Importance(c echo.Context) error {
	defer h.m.Observe("importance", time.Now())
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	scores, err := h.signals.Importance(c.Request().Context(), query(req.Symbol, req.N, req.TF), req.Top)
	if err != nil {
		return h.fail(c, "importance", err)
	}
	return xhttp.ListResponse(c, scores, int64(len(scores)))
}

func (h *ModelHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now().UTC()
	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour)),
		To:        xhttp.ParseTimeDefault(req.To, now),
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

type ingestResult struct {
	Accepted int `json:"accepted"`
}

func (h *ModelHandler) Ingest(c echo.Context) error {
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.candles.Ingest(c.Request().Context(), req.Symbol, domrepo.NormalizeTimeframe(req.TF), req.Candles)
	if err != nil {
		return h.fail(c, "ingest", err)
	}
	return xhttp.CreatedResponse(c, ingestResult{Accepted: n})
}

func (h *ModelHandler) fail(c echo.Context, endpoint string, err error) error {
	h.m.Error(endpoint)
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	} else {
		h.logger.Warn(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	var unsupported *modeling.UnsupportedModelTypeError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrNoCandles):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, modeling.ErrNoSequences):
		return xhttp.BadRequestError("not enough candles to build training sequences").WithError(err)
	case errors.Is(err, models.ErrInvalidCandle):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrIngestUnsupported):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.As(err, &unsupported):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("request timed out").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

func query(symbol string, n int, tf string) usecase.CandleQuery {
	return usecase.CandleQuery{Symbol: symbol, N: n, Timeframe: domrepo.NormalizeTimeframe(tf)}
}
