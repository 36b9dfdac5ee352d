package v1

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/absentia-hr/explainer/internal/cache"
	"github.com/absentia-hr/explainer/internal/elasticsearch"
	"github.com/absentia-hr/explainer/internal/explain"
	"github.com/absentia-hr/explainer/internal/schema"
)

// defaultTargetFactor is applied when a counterfactual request names no
// target: aim for a 20 percent reduction of the predicted hours.
const defaultTargetFactor = 0.8

// Options tunes the surrogate explanations served by the API. Zero values
// fall back to the engine defaults.
type Options struct {
	SurrogateSamples  int
	SurrogateJitter   float64
	SurrogateFeatures int
}

// Handler handles API requests
type Handler struct {
	mu       sync.RWMutex
	engine   *explain.Engine
	cache    *cache.Cache
	esLogger *elasticsearch.Logger
	opts     Options
}

// NewHandler creates a new API handler
func NewHandler(engine *explain.Engine, c *cache.Cache, esLogger *elasticsearch.Logger, opts Options) *Handler {
	return &Handler{
		engine:   engine,
		cache:    c,
		esLogger: esLogger,
		opts:     opts,
	}
}

// RegisterRoutes registers API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		explainGroup := v1.Group("/explain")
		{
			explainGroup.GET("/global", h.handleGlobalExplanation)
			explainGroup.POST("/local", h.handleLocalExplanation)
			explainGroup.POST("/surrogate", h.handleSurrogateExplanation)
			explainGroup.POST("/counterfactual", h.handleCounterfactual)
		}
		v1.POST("/predict", h.handlePredict)
	}
	r.GET("/health", h.handleHealth)
}

// currentEngine returns the engine serving requests. Each handler reads it
// once so a concurrent model reload cannot mix schemas within a request.
func (h *Handler) currentEngine() *explain.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// SwapEngine replaces the serving engine after a model reload.
func (h *Handler) SwapEngine(engine *explain.Engine) {
	h.mu.Lock()
	h.engine = engine
	h.mu.Unlock()
}

// ExplainRequest carries one employee record to explain.
type ExplainRequest struct {
	Input schema.Record `json:"input" binding:"required"`
}

// CounterfactualRequest carries a record plus counterfactual search options.
// Target is a factor applied to the original prediction; Actionable narrows
// the search to the named numeric features.
type CounterfactualRequest struct {
	Input      schema.Record `json:"input" binding:"required"`
	Target     *float64      `json:"target"`
	Actionable []string      `json:"actionable"`
}

// handleGlobalExplanation serves the per-feature importance ranking for the
// current model, cached per model version.
func (h *Handler) handleGlobalExplanation(c *gin.Context) {
	engine := h.currentEngine()

	key := cache.GlobalKey(engine.Version())
	payload, hit, err := h.cache.GetOrCompute(c.Request.Context(), key, func() ([]byte, error) {
		summary, err := engine.GlobalSummary()
		if err != nil {
			return nil, err
		}
		return json.Marshal(gin.H{
			"feature_importance": summary,
			"explainer_type":     "linear",
			"sample_size":        engine.SampleSize(),
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}

	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode cached explanation"})
		return
	}
	body["cached"] = hit

	h.audit(c, elasticsearch.ExplanationRecord{
		Kind:         "global",
		ModelVersion: engine.Version(),
		Cached:       hit,
	})
	c.JSON(http.StatusOK, body)
}

// handleLocalExplanation serves per-feature contributions for one record.
func (h *Handler) handleLocalExplanation(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.currentEngine()
	vec, err := engine.Model().Schema.Encode(req.Input)
	if err != nil {
		writeError(c, err)
		return
	}

	prediction, err := engine.Predict(vec)
	if err != nil {
		writeError(c, err)
		return
	}
	contribs, err := engine.Attribute(vec)
	if err != nil {
		writeError(c, err)
		return
	}
	explain.SortContributions(contribs)

	h.audit(c, elasticsearch.ExplanationRecord{
		Kind:         "local",
		ModelVersion: engine.Version(),
		Prediction:   prediction,
	})
	c.JSON(http.StatusOK, gin.H{
		"prediction":    prediction,
		"contributions": contribs,
		"text_summary":  explain.TextSummary(prediction, contribs),
	})
}

// handleSurrogateExplanation serves a local surrogate fit around one record.
// A neighborhood where nothing varies degrades the response instead of
// failing it.
func (h *Handler) handleSurrogateExplanation(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.currentEngine()
	vec, err := engine.Model().Schema.Encode(req.Input)
	if err != nil {
		writeError(c, err)
		return
	}
	prediction, err := engine.Predict(vec)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := engine.Surrogate(vec, explain.SurrogateOptions{
		Samples: h.opts.SurrogateSamples,
		Jitter:  h.opts.SurrogateJitter,
		TopN:    h.opts.SurrogateFeatures,
	})
	if err != nil {
		var degenerate *explain.DegenerateNeighborhoodError
		if errors.As(err, &degenerate) {
			c.JSON(http.StatusOK, gin.H{
				"prediction":        prediction,
				"top_features":      []explain.FeatureWeight{},
				"explanation_score": 0.0,
				"degraded":          true,
				"reason":            err.Error(),
			})
			return
		}
		writeError(c, err)
		return
	}

	h.audit(c, elasticsearch.ExplanationRecord{
		Kind:         "surrogate",
		ModelVersion: engine.Version(),
		Prediction:   prediction,
	})
	c.JSON(http.StatusOK, gin.H{
		"prediction":        prediction,
		"top_features":      res.TopFeatures,
		"explanation_score": res.Fidelity,
	})
}

// handleCounterfactual serves single-feature changes that would move a
// prediction toward the requested target.
func (h *Handler) handleCounterfactual(c *gin.Context) {
	var req CounterfactualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.currentEngine()
	vec, err := engine.Model().Schema.Encode(req.Input)
	if err != nil {
		writeError(c, err)
		return
	}
	original, err := engine.Predict(vec)
	if err != nil {
		writeError(c, err)
		return
	}

	factor := defaultTargetFactor
	if req.Target != nil {
		factor = *req.Target
	}

	res, err := engine.Counterfactuals(vec, original*factor, req.Actionable)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit(c, elasticsearch.ExplanationRecord{
		Kind:         "counterfactual",
		ModelVersion: engine.Version(),
		Prediction:   original,
		Detail:       gin.H{"target": res.TargetPrediction, "candidates": len(res.Candidates)},
	})
	c.JSON(http.StatusOK, res)
}

// handlePredict serves a plain prediction for one record.
func (h *Handler) handlePredict(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.currentEngine()
	vec, err := engine.Model().Schema.Encode(req.Input)
	if err != nil {
		writeError(c, err)
		return
	}
	prediction, err := engine.Predict(vec)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit(c, elasticsearch.ExplanationRecord{
		Kind:         "prediction",
		ModelVersion: engine.Version(),
		Prediction:   prediction,
	})
	c.JSON(http.StatusOK, gin.H{
		"prediction":    prediction,
		"model_version": engine.Version(),
	})
}

// handleHealth reports service and dependency status.
func (h *Handler) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	health := gin.H{
		"status":        "healthy",
		"model_version": h.currentEngine().Version(),
	}
	status := http.StatusOK

	if err := h.cache.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	// The audit trail is best effort, so its state never fails readiness
	if h.esLogger != nil {
		if err := h.esLogger.Ping(ctx); err != nil {
			health["status"] = "degraded"
			health["audit"] = err.Error()
		}
	}

	c.JSON(status, health)
}

// audit logs a served explanation to the audit trail
func (h *Handler) audit(c *gin.Context, rec elasticsearch.ExplanationRecord) {
	if h.esLogger == nil {
		return
	}
	rec.Timestamp = time.Now().UTC()
	if err := h.esLogger.LogExplanation(c.Request.Context(), rec); err != nil {
		// Log the error but don't fail the request
		log.Printf("Warning: failed to log explanation: %v", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Schema and target
// problems are the caller's fault; anything else, including a model whose
// weights disagree with its schema, is a server fault.
func writeError(c *gin.Context, err error) {
	var schemaErr *schema.SchemaError
	var invalidTarget *explain.InvalidTargetError
	if errors.As(err, &schemaErr) || errors.As(err, &invalidTarget) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
