package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gttbracket/internal/bracket"
	"gttbracket/internal/preset"
	"gttbracket/internal/store/oplog"
)

// Router exposes plan CRUD plus the manager verbs (place, scan, cancel,
// manual overrides) and the audit-trail query.
type Router struct {
	svc     *bracket.Service
	ops     *oplog.Store
	presets *preset.Registry
}

func NewRouter(svc *bracket.Service, ops *oplog.Store, presets *preset.Registry) *Router {
	return &Router{svc: svc, ops: ops, presets: presets}
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/plans", r.handleCreatePlan)
	group.GET("/plans", r.handleListPlans)
	group.GET("/plans/:id", r.handleGetPlan)
	group.DELETE("/plans/:id", r.handleDeletePlan)
	group.POST("/plans/:id/place", r.handlePlacePlan)
	group.POST("/plans/:id/scan", r.handleScanPlan)
	group.POST("/plans/:id/cancel-all", r.handleCancelAll)
	group.POST("/plans/:id/legs/:label/force-trigger", r.handleForceTrigger)
	group.POST("/plans/:id/legs/:label/force-cancel", r.handleForceCancel)
	group.GET("/operations", r.handleListOperations)
	group.GET("/presets", r.handleListPresets)
}

type legRequest struct {
	Label    string  `json:"label"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type createPlanRequest struct {
	Symbol        string       `json:"symbol"`
	Exchange      string       `json:"exchange"`
	Side          string       `json:"side"`
	EntryPrice    float64      `json:"entry_price"`
	TotalQuantity int          `json:"total_quantity"`
	Preset        string       `json:"preset"`
	Stops         []legRequest `json:"stops"`
	Targets       []legRequest `json:"targets"`
	ProductType   string       `json:"product_type"`
	Remarks       string       `json:"remarks"`
}

func (r *Router) handleCreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svcReq := bracket.CreateRequest{
		Symbol:        req.Symbol,
		Exchange:      req.Exchange,
		Side:          bracket.Side(strings.ToUpper(strings.TrimSpace(req.Side))),
		EntryPrice:    req.EntryPrice,
		TotalQuantity: req.TotalQuantity,
		Stops:         toLegs(req.Stops, bracket.KindStop),
		Targets:       toLegs(req.Targets, bracket.KindTarget),
		ProductType:   req.ProductType,
		Remarks:       req.Remarks,
	}
	if id := strings.TrimSpace(req.Preset); id != "" {
		if r.presets == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no preset file configured"})
			return
		}
		pre, ok := r.presets.Preset(id)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown preset: " + id})
			return
		}
		stops, targets, err := preset.Materialize(pre, svcReq.Side, req.EntryPrice, req.TotalQuantity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		svcReq.Stops = stops
		svcReq.Targets = targets
	}
	p, warnings, err := r.svc.Create(c.Request.Context(), svcReq)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan": p, "warnings": warnings})
}

func toLegs(in []legRequest, kind bracket.LegKind) []bracket.Leg {
	legs := make([]bracket.Leg, 0, len(in))
	for _, l := range in {
		legs = append(legs, bracket.Leg{
			Label:    l.Label,
			Kind:     kind,
			Price:    l.Price,
			Quantity: l.Quantity,
		})
	}
	return legs
}

func (r *Router) handleListPlans(c *gin.Context) {
	plans, err := r.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (r *Router) handleGetPlan(c *gin.Context) {
	p, err := r.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p})
}

func (r *Router) handleDeletePlan(c *gin.Context) {
	if err := r.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (r *Router) handlePlacePlan(c *gin.Context) {
	p, placed, failed, err := r.svc.Place(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p, "placed": placed, "failed": failed})
}

func (r *Router) handleScanPlan(c *gin.Context) {
	p, report, err := r.svc.Scan(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p, "report": report})
}

func (r *Router) handleCancelAll(c *gin.Context) {
	p, cancelled, err := r.svc.CancelAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p, "cancelled": cancelled})
}

func (r *Router) handleForceTrigger(c *gin.Context) {
	p, err := r.svc.ForceTrigger(c.Request.Context(), c.Param("id"), c.Param("label"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p})
}

func (r *Router) handleForceCancel(c *gin.Context) {
	p, err := r.svc.ForceCancel(c.Request.Context(), c.Param("id"), c.Param("label"))
	if err != nil {
		r.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": p})
}

func (r *Router) handleListOperations(c *gin.Context) {
	if r.ops == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "operations log not configured"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	ops, err := r.ops.List(c.Request.Context(), c.Query("plan_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (r *Router) handleListPresets(c *gin.Context) {
	if r.presets == nil {
		c.JSON(http.StatusOK, gin.H{"presets": gin.H{}})
		return
	}
	snap := r.presets.Snapshot()
	c.JSON(http.StatusOK, gin.H{"presets": snap.Presets, "version": snap.Version})
}

func (r *Router) planError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bracket.ErrPlanNotFound), errors.Is(err, bracket.ErrLegNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
