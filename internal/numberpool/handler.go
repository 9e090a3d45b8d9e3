package numberpool

import (
	"net/http"

	"missedcall_backend/platform/httpkit"
	"missedcall_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes pool inventory and the explicit release operation on the
// admin API.
type Handler struct {
	repo *Repository
	log  *logger.Logger
}

func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/stats", h.Stats)
	group.POST("/release/:clientID", h.Release)
}

// Stats returns pool inventory counts.
// GET /api/v1/numberpool/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.repo.GetStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"available": stats.Available, "assigned": stats.Assigned})
}

// Release returns a client's number to the pool. Deliberately manual; the
// allocator never does this on its own.
// POST /api/v1/numberpool/release/:clientID
func (h *Handler) Release(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("clientID"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client ID")
		return
	}

	if err := h.repo.Release(c.Request.Context(), clientID); httpkit.HandleError(c, err) {
		return
	}

	h.log.Info("pool number released", "client_id", clientID.String())
	httpkit.OK(c, gin.H{"released": true})
}
