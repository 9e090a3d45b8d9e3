package stuck

import (
	"context"

	"missedcall_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Scanner runs a scan on demand. Satisfied by *Detector.
type Scanner interface {
	Detect(ctx context.Context) (Summary, error)
}

// Handler exposes an on-demand scan so an operator can see the stuck list
// without waiting for the next scheduled run. The scan is read-mostly; the
// alert suppression rules make repeated calls safe.
type Handler struct {
	scanner Scanner
}

func NewHandler(scanner Scanner) *Handler {
	return &Handler{scanner: scanner}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/stuck", h.Scan)
}

type stuckClientResponse struct {
	ClientID     string `json:"clientId"`
	BusinessName string `json:"businessName"`
	State        string `json:"state"`
	StuckMinutes int    `json:"stuckMinutes"`
	Severity     string `json:"severity"`
	Terminal     bool   `json:"terminal"`
}

// Scan runs the detector and returns the summary.
// GET /api/v1/onboarding/stuck
func (h *Handler) Scan(c *gin.Context) {
	summary, err := h.scanner.Detect(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	clients := make([]stuckClientResponse, 0, len(summary.Clients))
	for _, sc := range summary.Clients {
		clients = append(clients, stuckClientResponse{
			ClientID:     sc.ClientID.String(),
			BusinessName: sc.BusinessName,
			State:        string(sc.State),
			StuckMinutes: int(sc.StuckFor.Minutes()),
			Severity:     sc.Severity,
			Terminal:     sc.Terminal,
		})
	}

	httpkit.OK(c, gin.H{
		"generatedAt": summary.GeneratedAt,
		"total":       summary.Total,
		"clients":     clients,
	})
}
