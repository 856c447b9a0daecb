package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rzzdr/actuarial-risk-core/internal/copula"
	"github.com/rzzdr/actuarial-risk-core/internal/exposure"
	"github.com/rzzdr/actuarial-risk-core/internal/kafka"
	"github.com/rzzdr/actuarial-risk-core/internal/pricing"
	"github.com/rzzdr/actuarial-risk-core/internal/risk"
	"github.com/rzzdr/actuarial-risk-core/internal/store"
	"github.com/rzzdr/actuarial-risk-core/internal/syndicate"
	"github.com/rzzdr/actuarial-risk-core/pkg/metrics"
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/validation"
)

const (
	defaultReturnPeriod = 100
	defaultCILevel      = 0.95
	defaultCurvePoints  = 101
	maxCurvePoints      = 10001
)

// Publisher forwards results to downstream consumers
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value interface{}, headers ...kafka.MessageHeader) error
}

// CopulaLimits bound the size of one copula sample
type CopulaLimits struct {
	MaxSimulations int
	// MaxVariables caps the correlation matrix dimension and Clayton variables
	MaxVariables int
	// MaxValues caps variables times simulations
	MaxValues int
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	pricer     *pricing.Pricer
	simulator  *risk.Simulator
	syndicates *syndicate.Service
	store      *store.SyndicateStore
	quotes     Publisher
	summaries  Publisher
	recorder   *metrics.Recorder
	copula     CopulaLimits
	log        *logger.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(deps Dependencies, limits CopulaLimits) *Handlers {
	return &Handlers{
		pricer:     deps.Pricer,
		simulator:  deps.Simulator,
		syndicates: deps.Syndicates,
		store:      deps.Store,
		quotes:     deps.Quotes,
		summaries:  deps.Summaries,
		recorder:   deps.Recorder,
		copula:     limits,
		log:        logger.GetLogger("api.handlers"),
	}
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// QuoteHandler prices a D&O rating request
func (h *Handlers) QuoteHandler(c *gin.Context) {
	var req pricing.Request
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	quote, err := h.pricer.Quote(req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.publish(c.Request.Context(), h.quotes, quote.ID, quote)
	c.JSON(http.StatusOK, quote)
}

// ExposureRateHandler rates a layer against a risk profile
func (h *Handlers) ExposureRateHandler(c *gin.Context) {
	var req exposure.Request
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	result, err := exposure.Rate(req)
	if h.recorder != nil {
		h.recorder.RecordExposureRating(err)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExposureCurveHandler returns the calibrated curve for ?c= on ?points= damage ratios
func (h *Handlers) ExposureCurveHandler(c *gin.Context) {
	cParam, ok := c.GetQuery("c")
	if !ok {
		h.fail(c, errors.Validation("query parameter c is required"))
		return
	}
	swissRe, err := strconv.ParseFloat(cParam, 64)
	if err != nil {
		h.fail(c, errors.Validationf("c must be a number, got %q", cParam))
		return
	}
	points, err := queryInt(c, "points", defaultCurvePoints)
	if err != nil {
		h.fail(c, err)
		return
	}
	if points > maxCurvePoints {
		h.fail(c, errors.ResourceExhausted("too many curve points requested"))
		return
	}

	curve, err := exposure.NewCurve(swissRe)
	if err != nil {
		h.fail(c, err)
		return
	}
	pts, err := curve.Points(points)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, CurveResponse{
		C:               curve.C,
		B:               curve.B,
		G:               curve.G,
		MeanDamageRatio: curve.MeanDamageRatio(),
		Points:          pts,
	})
}

// SimulateHandler runs an aggregate loss simulation and summarises it
func (h *Handlers) SimulateHandler(c *gin.Context) {
	var req SimulateRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(c, err)
		return
	}

	spec, err := simulationSpec(req)
	if err != nil {
		h.fail(c, err)
		return
	}

	start := time.Now()
	losses, err := h.simulator.Run(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err)
		return
	}

	rp := req.ReturnPeriod
	if rp == 0 {
		rp = defaultReturnPeriod
	}
	window := req.SVaRWindow
	if window == 0 {
		window = risk.DefaultSVaRWindow
	}
	ciLevel := req.CILevel
	if ciLevel == 0 {
		ciLevel = defaultCILevel
	}

	summary, err := losses.Summary(rp, window, ciLevel)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary.RunID = uuid.NewString()
	summary.Layered = req.Layered
	summary.Duration = time.Since(start)

	h.publish(c.Request.Context(), h.summaries, summary.RunID, summary)
	c.JSON(http.StatusOK, summary)
}

func simulationSpec(req SimulateRequest) (risk.Spec, error) {
	severity, err := req.Severity.severity()
	if err != nil {
		return risk.Spec{}, errors.Wrap(err, "severity")
	}
	frequency, err := req.Frequency.frequency()
	if err != nil {
		return risk.Spec{}, errors.Wrap(err, "frequency")
	}

	spec := risk.Spec{
		Severity:  severity,
		Frequency: frequency,
		Layer:     models.UnlimitedLayer(),
		Layered:   req.Layered,
		Trials:    req.Trials,
		Seed:      req.Seed,
	}
	if req.Layered {
		if req.Layer == nil {
			return risk.Spec{}, errors.Validation("layered runs need a layer")
		}
		spec.Layer = *req.Layer
	}
	return spec, nil
}

// CopulaSampleHandler draws uniforms from a copula for the dependence chart
func (h *Handlers) CopulaSampleHandler(c *gin.Context) {
	var req CopulaRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(c, err)
		return
	}
	if req.Simulations > h.copula.MaxSimulations {
		h.fail(c, errors.ResourceExhausted("requested copula simulations exceed the configured maximum"))
		return
	}

	kind, err := copula.ParseKind(req.Family)
	if err != nil {
		h.fail(c, err)
		return
	}

	vars := len(req.Correlation)
	if kind == copula.KindClayton {
		vars = req.Variables
		if vars == 0 {
			vars = 2
		}
	}
	if vars > h.copula.MaxVariables {
		h.fail(c, errors.ResourceExhausted(fmt.Sprintf(
			"copula dimension %d exceeds the configured maximum of %d", vars, h.copula.MaxVariables)))
		return
	}
	if vars*req.Simulations > h.copula.MaxValues {
		h.fail(c, errors.ResourceExhausted("requested copula sample size exceeds the configured maximum"))
		return
	}

	gen := copula.NewGenerator(req.Seed)
	var sample *copula.Sample
	switch kind {
	case copula.KindClayton:
		sample, err = gen.Clayton(vars, req.Simulations, req.Alpha)
	default:
		corr, cerr := copula.CorrelationFromRows(req.Correlation)
		if cerr != nil {
			h.fail(c, cerr)
			return
		}
		if kind == copula.KindStudentT {
			sample, err = gen.StudentT(corr, req.DF, req.Simulations)
		} else {
			sample, err = gen.Gaussian(corr, req.Simulations)
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, CopulaResponse{Family: kind.String(), Sample: sample})
}

// ReplaceRecordsHandler swaps the syndicate history. Cached models are dropped.
func (h *Handlers) ReplaceRecordsHandler(c *gin.Context) {
	var records []models.SyndicateRecord
	if err := bindJSON(c, &records); err != nil {
		h.fail(c, err)
		return
	}

	version, err := h.store.Replace(c.Request.Context(), records)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RecordsResponse{Version: version, Records: len(records)})
}

// QuartilesHandler returns the quartile probability model for a class
func (h *Handlers) QuartilesHandler(c *gin.Context) {
	var params syndicate.Params
	if err := bindJSON(c, &params); err != nil {
		h.fail(c, err)
		return
	}

	model, err := h.syndicates.Quartiles(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

// TransitionsHandler returns the year-on-year quartile movement matrix
func (h *Handlers) TransitionsHandler(c *gin.Context) {
	lookback, err := queryInt(c, "lookback", 0)
	if err != nil {
		h.fail(c, err)
		return
	}

	matrix, err := h.syndicates.Transitions(c.Request.Context(), c.Query("cob"), lookback)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matrix)
}

// InvalidateCacheHandler drops every memoized quartile model
func (h *Handlers) InvalidateCacheHandler(c *gin.Context) {
	if err := h.syndicates.InvalidateCache(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) publish(ctx context.Context, p Publisher, key string, value interface{}) {
	if p == nil {
		return
	}
	if err := p.PublishJSON(ctx, key, value); err != nil {
		h.log.Warnw("Failed to publish result", "key", key, "error", err)
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "path", c.FullPath(), "error", err)
	} else {
		h.log.Debugw("Request rejected", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: err.Error(),
		Type:  errors.TypeOf(err).String(),
	})
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeLookup:
		return http.StatusBadRequest
	case errors.ErrorTypeDomain:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeResourceExhausted:
		return http.StatusRequestEntityTooLarge
	case errors.ErrorTypeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.WithType(errors.Wrap(err, "invalid request body"), errors.ErrorTypeValidation)
	}
	return nil
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validationf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}
