package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardHandler serves the liveness routes and the sync controls.
type DashboardHandler struct {
	Sync    SyncService
	started time.Time
	log     *zap.Logger
}

func NewDashboardHandler(sync SyncService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{Sync: sync, started: time.Now(), log: log.Named("api.dashboard")}
}

func (h *DashboardHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Leadboard backend is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *DashboardHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *DashboardHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Olá! A API do seu Bot está no ar!")
}

// SyncManual runs one reconciliation cycle and reports what it did.
func (h *DashboardHandler) SyncManual(c *gin.Context) {
	res, err := h.Sync.RunNow(c.Request.Context())
	if err != nil {
		h.log.Error("manual sync", zap.Error(err))
		fail(c, "Erro na sincronização", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sucesso":        true,
		"mensagem":       "Sincronização concluída!",
		"processedCount": res.Written,
		"createdCount":   res.Created,
		"stats":          h.Sync.Stats(),
	})
}

func (h *DashboardHandler) SyncStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "stats": h.Sync.Stats()})
}
