package alerts

import (
	"net/http"

	"missedcall_backend/platform/httpkit"
	"missedcall_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the operator alert log over the admin API.
type Handler struct {
	repo *Repository
	val  *validator.Validator
}

func NewHandler(repo *Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes mounts the alert admin endpoints.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("/:id/ack", h.Acknowledge)
}

type logEntryResponse struct {
	ID             uuid.UUID `json:"id"`
	AlertType      string    `json:"alertType"`
	AlertKey       string    `json:"alertKey"`
	Severity       string    `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	DeliveredAt    string    `json:"deliveredAt"`
	AcknowledgedAt *string   `json:"acknowledgedAt,omitempty"`
	Resolution     *string   `json:"resolution,omitempty"`
}

// List returns recent alerts, newest first.
// GET /api/v1/alerts
func (h *Handler) List(c *gin.Context) {
	entries, err := h.repo.List(c.Request.Context(), 100)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := logEntryResponse{
			ID:          e.ID,
			AlertType:   e.AlertType,
			AlertKey:    e.AlertKey,
			Severity:    e.Severity,
			Title:       e.Title,
			Message:     e.Message,
			DeliveredAt: e.DeliveredAt.Format("2006-01-02T15:04:05Z07:00"),
			Resolution:  e.Resolution,
		}
		if e.AcknowledgedAt != nil {
			ack := e.AcknowledgedAt.Format("2006-01-02T15:04:05Z07:00")
			resp.AcknowledgedAt = &ack
		}
		out = append(out, resp)
	}

	httpkit.OK(c, gin.H{"alerts": out})
}

type acknowledgeRequest struct {
	Resolution string `json:"resolution" validate:"max=500"`
}

// Acknowledge marks an alert as seen by the operator, which re-arms the
// deduplication key after the cooldown.
// POST /api/v1/alerts/:id/ack
func (h *Handler) Acknowledge(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid alert ID")
		return
	}

	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error")
		return
	}

	operatorID, _ := c.Get(httpkit.ContextUserIDKey)
	opUUID, ok := operatorID.(uuid.UUID)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing operator identity")
		return
	}

	if err := h.repo.Acknowledge(c.Request.Context(), alertID, opUUID, req.Resolution); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"acknowledged": true})
}
