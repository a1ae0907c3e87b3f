package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/identity"
	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/reports/service"
	"github.com/civicworks/fixline/internal/uploads"
)

// ReportHandler handles HTTP requests for the report lifecycle.
type ReportHandler struct {
	engine *service.Engine
	router *service.Router
	files  uploads.Store
	tokens *identity.SessionIssuer
	logger *zap.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(
	engine *service.Engine,
	router *service.Router,
	files uploads.Store,
	tokens *identity.SessionIssuer,
	logger *zap.Logger,
) *ReportHandler {
	return &ReportHandler{engine: engine, router: router, files: files, tokens: tokens, logger: logger}
}

// Register mounts all report routes on the given router group.
func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	reports.Use(identity.RequireActor(h.tokens))
	{
		reports.POST("", h.CreateReport)
		reports.GET("", h.ListReports)
		reports.GET("/:id", h.GetReport)
		reports.PUT("/:id/verify", h.VerifyReport)
		reports.PUT("/:id/assign", h.AssignReport)
		reports.PUT("/:id/status", h.UpdateStatus)
		reports.DELETE("/:id", h.DeleteReport)
	}

	rg.GET("/users/:userId/reports", identity.RequireActor(h.tokens), h.ListReporterReports)

	departments := rg.Group("/departments")
	departments.Use(identity.RequireStaff(h.tokens))
	{
		departments.GET("/:department/history", h.DepartmentHistory)
		departments.POST("/:department/bulk-verify", h.BulkVerify)
		departments.POST("/:department/bulk-reject", h.BulkReject)
	}
}

// ─── Request types ───────────────────────────────────────────────────────────

type verifyRequest struct {
	Status     string `json:"status"     binding:"required"`
	Department string `json:"department"`
}

type assignRequest struct {
	FieldHeadID string `json:"field_head_id" binding:"required"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// CreateReport handles POST /reports — submits a new report. The body is
// multipart form data so an evidence image can ride along with the fields.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	actor := identity.ActorFromCtx(c)

	req := &model.CreateReportRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    model.Category(c.PostForm("category")),
		Location:    c.PostForm("location"),
	}

	if file, err := c.FormFile("image"); err == nil {
		url, err := h.files.Save(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.ImageURL = url
	}

	rpt, err := h.engine.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"report": rpt})
}

// ListReports handles GET /reports — the filtered, paginated listing.
// Reporters see only their own reports; staff see everything, narrowed only
// by the query parameters they pass.
func (h *ReportHandler) ListReports(c *gin.Context) {
	actor := identity.ActorFromCtx(c)

	f := model.ListFilter{
		Category:   model.Category(c.Query("category")),
		Department: model.Department(c.Query("department")),
		Search:     c.Query("search"),
		Sort:       model.SortKey(c.Query("sort")),
		Order:      model.SortOrder(c.Query("order")),
		Page:       queryInt(c, "page", 1),
	}
	if statuses, err := parseStatuses(c.Query("status")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else {
		f.Statuses = statuses
	}

	reports, total, err := h.engine.ListForActor(c.Request.Context(), actor, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":   reports,
		"total":     total,
		"page":      f.Page,
		"page_size": model.DefaultPageSize,
	})
}

// GetReport handles GET /reports/:id.
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	rpt, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": rpt})
}

// VerifyReport handles PUT /reports/:id/verify — moves a pending report to
// verified or fake.
func (h *ReportHandler) VerifyReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requested := model.ReportStatus(req.Status)
	if requested != model.StatusVerified && requested != model.StatusFake {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be 'verified' or 'fake'"})
		return
	}

	actor := identity.ActorFromCtx(c)
	rpt, err := h.engine.ApplyTransition(c.Request.Context(), id, actor, requested, model.TransitionPayload{
		Department: model.Department(req.Department),
	})
	h.finishTransition(c, rpt, requested, err)
}

// AssignReport handles PUT /reports/:id/assign — assigns a verified report
// to a field head.
func (h *ReportHandler) AssignReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fieldHeadID, err := uuid.Parse(req.FieldHeadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field head ID"})
		return
	}

	actor := identity.ActorFromCtx(c)
	rpt, err := h.router.AssignToFieldHead(c.Request.Context(), actor, id, fieldHeadID)
	h.finishTransition(c, rpt, model.StatusAssigned, err)
}

// UpdateStatus handles PUT /reports/:id/status — the working transitions:
// in_progress, resolved (with closure image), closed. The body is multipart
// form data so resolve can carry its evidence photo.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	requested := model.ReportStatus(c.PostForm("status"))
	if requested == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	payload := model.TransitionPayload{}
	if file, err := c.FormFile("closure_image"); err == nil {
		url, err := h.files.Save(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payload.ClosureImage = url
	}

	actor := identity.ActorFromCtx(c)
	rpt, err := h.engine.ApplyTransition(c.Request.Context(), id, actor, requested, payload)
	if err != nil && payload.ClosureImage != "" {
		// The transition was denied; the evidence photo saved above would
		// otherwise sit on disk unreferenced.
		if rmErr := h.files.Remove(payload.ClosureImage); rmErr != nil {
			h.logger.Warn("closure image cleanup failed",
				zap.String("url", payload.ClosureImage),
				zap.Error(rmErr),
			)
		}
	}
	h.finishTransition(c, rpt, requested, err)
}

// DeleteReport handles DELETE /reports/:id — removes a fake report.
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	actor := identity.ActorFromCtx(c)
	if err := h.engine.Delete(c.Request.Context(), id, actor); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "report deleted"})
}

// ListReporterReports handles GET /users/:userId/reports.
func (h *ReportHandler) ListReporterReports(c *gin.Context) {
	reporterID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	actor := identity.ActorFromCtx(c)
	reports, total, err := h.engine.ListByReporter(c.Request.Context(), actor, reporterID, queryInt(c, "page", 1))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": total})
}

// DepartmentHistory handles GET /departments/:department/history — the
// department's reports plus per-status counts. An optional ?status= narrows
// the listing without affecting the counts.
func (h *ReportHandler) DepartmentHistory(c *gin.Context) {
	dept := model.Department(c.Param("department"))
	status := model.ReportStatus(c.Query("status"))
	actor := identity.ActorFromCtx(c)

	reports, total, counts, err := h.engine.DepartmentHistory(c.Request.Context(), actor, dept, status, queryInt(c, "page", 1))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
		"counts":  counts,
	})
}

// BulkVerify handles POST /departments/:department/bulk-verify.
func (h *ReportHandler) BulkVerify(c *gin.Context) {
	h.bulk(c, model.StatusVerified)
}

// BulkReject handles POST /departments/:department/bulk-reject.
func (h *ReportHandler) BulkReject(c *gin.Context) {
	h.bulk(c, model.StatusFake)
}

func (h *ReportHandler) bulk(c *gin.Context, target model.ReportStatus) {
	dept := model.Department(c.Param("department"))
	actor := identity.ActorFromCtx(c)

	var result *model.BulkResult
	var err error
	if target == model.StatusVerified {
		result, err = h.router.BulkVerify(c.Request.Context(), actor, dept)
	} else {
		result, err = h.router.BulkMarkFake(c.Request.Context(), actor, dept)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	recordBulkOperation(string(target))

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// finishTransition writes the transition response and records its metric.
func (h *ReportHandler) finishTransition(c *gin.Context, rpt *model.Report, requested model.ReportStatus, err error) {
	if err != nil {
		recordTransition(string(requested), string(model.ReasonOf(err)))
		h.writeError(c, err)
		return
	}
	recordTransition(string(rpt.Status), "ok")
	c.JSON(http.StatusOK, gin.H{"report": rpt})
}

// writeError maps the engine's reason codes onto HTTP statuses. Anything
// without a reason code is an unexpected internal failure.
func (h *ReportHandler) writeError(c *gin.Context, err error) {
	reason := model.ReasonOf(err)

	var status int
	switch reason {
	case model.ReasonValidation:
		status = http.StatusBadRequest
	case model.ReasonForbidden:
		status = http.StatusForbidden
	case model.ReasonNotFound:
		status = http.StatusNotFound
	case model.ReasonIllegalTransition, model.ReasonNoOp, model.ReasonConflict, model.ReasonNotDeletable:
		status = http.StatusConflict
	case model.ReasonMissingEvidence, model.ReasonInvalidAssignee:
		status = http.StatusUnprocessableEntity
	case model.ReasonStoreUnavailable:
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error(), "reason": string(reason)})
}

// parseStatuses splits a comma-separated status query into validated values.
func parseStatuses(raw string) ([]model.ReportStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []model.ReportStatus
	for _, part := range strings.Split(raw, ",") {
		s := model.ReportStatus(strings.TrimSpace(part))
		if s == "" {
			continue
		}
		if !s.Valid() {
			return nil, model.NewError(model.ReasonValidation, "unknown status "+strconv.Quote(string(s)))
		}
		out = append(out, s)
	}
	return out, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
