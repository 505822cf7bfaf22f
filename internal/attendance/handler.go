package attendance

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/rbac"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	view := auth.RequirePermission(rbac.ModuleCheckin, rbac.ActionView)
	punch := auth.RequirePermission(rbac.ModuleCheckin, rbac.ActionEdit)
	analytics := auth.RequirePermission(rbac.ModuleAnalytics, rbac.ActionView)

	// 端末位置の報告（ページ表示時に取得 → 打刻ボタンで再利用）
	r.POST("/locations", punch, h.ReportLocation)

	r.POST("/attendances/checkin", punch, h.CheckIn)
	r.POST("/attendances/checkout", punch, h.CheckOut)
	r.POST("/attendances/punch", punch, h.Punch)

	r.GET("/attendances/today", view, h.Today)
	r.GET("/attendances/history", view, h.History)
	r.GET("/attendances/stats", analytics, h.Stats)
	r.GET("/attendances/summary", analytics, h.Summary)
	r.GET("/attendances/:attendance_id", view, h.Get)
	r.GET("/attendances", view, h.List)
}

// ---------- handlers ----------

// POST /locations
func (h *Handler) ReportLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "latitude and longitude are required"))
		return
	}
	res, err := h.svc.ReportLocation(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /attendances/checkin
// 範囲外でも 201（location_valid=false で返す）
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckinRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.CheckIn(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/attendances/"+res.AttendanceID)
	c.JSON(http.StatusCreated, res)
}

// POST /attendances/checkout
func (h *Handler) CheckOut(c *gin.Context) {
	var req CheckoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.CheckOut(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /attendances/punch
func (h *Handler) Punch(c *gin.Context) {
	var req CheckinRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.Punch(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Action == ActionCheckin {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// GET /attendances/today
func (h *Handler) Today(c *gin.Context) {
	res, err := h.svc.Today(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /attendances/history
func (h *Handler) History(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /attendances/:attendance_id
// 他人の記録は analytics:view が無ければ 404
func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("attendance_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.UserID != currentUser(c) && !canSeeOthers(c) {
		c.JSON(http.StatusNotFound, errorBody(CodeNotFound, "attendance not found"))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /attendances?user_id=&community_id=&on=&from=&to=&location_valid=&limit=&offset=&sort=
func (h *Handler) List(c *gin.Context) {
	q := ListQuery{
		Limit:  parseIntDefault(c.Query("limit"), DefaultPageLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Sort:   c.DefaultQuery("sort", DefaultSort),
	}
	if v := c.Query("user_id"); v != "" {
		q.UserID = &v
	}
	if v := c.Query("community_id"); v != "" {
		q.CommunityID = &v
	}
	if v := c.Query("on"); v != "" {
		q.On = &v
	}
	if v := c.Query("from"); v != "" {
		q.From = &v
	}
	if v := c.Query("to"); v != "" {
		q.To = &v
	}
	if v := c.Query("location_valid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "location_valid must be true or false"))
			return
		}
		q.LocationValid = &b
	}
	// 一般勤務人員は自分の記録のみ
	if !canSeeOthers(c) {
		self := currentUser(c)
		q.UserID = &self
	}

	res, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /attendances/stats?from=&to=&limit=
func (h *Handler) Stats(c *gin.Context) {
	rows, err := h.svc.Stats(c.Request.Context(), StatsRequest{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Limit: parseIntDefault(c.Query("limit"), 10),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// GET /attendances/summary?from=&to=&user_id=
func (h *Handler) Summary(c *gin.Context) {
	req := SummaryRequest{From: c.Query("from"), To: c.Query("to")}
	if v := c.Query("user_id"); v != "" {
		req.UserID = &v
	}
	res, err := h.svc.Summary(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func currentUser(c *gin.Context) string { return c.GetString(auth.CtxUserIDKey) }

func canSeeOthers(c *gin.Context) bool {
	return rbac.HasPermission(rbac.Role(c.GetString(auth.CtxRoleKey)), rbac.ModuleAnalytics, rbac.ActionView)
}

// bindOptionalJSON: 空ボディは許可（キャッシュ済み位置で打刻）
// chunked で長さ不明な空ボディは decode 時の io.EOF で判定する
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return false
	}
	return true
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return d
	}
	return v
}

func (h *Handler) fail(c *gin.Context, err error) {
	var api *APIError
	if !errors.As(err, &api) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
		return
	}
	c.JSON(toHTTPStatus(err), errorBody(api.Code, api.Message))
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}
