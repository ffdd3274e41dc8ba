package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the services the routes adapt.
type Deps struct {
	Board      BoardService
	Flags      FlagService
	Sync       SyncService
	Messenger  Messenger
	History    HistoryReader
	WebSocket  http.HandlerFunc
	CORSOrigin string
	Log        *zap.Logger
}

// CORS allows the board UI to call the API from another origin.
func CORS(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log), CORS(d.CORSOrigin))

	dashboardHandler := NewDashboardHandler(d.Sync, d.Log)
	contactHandler := NewContactHandler(d.Board, d.Flags, d.Log)
	whatsappHandler := NewWhatsAppHandler(d.Messenger, d.History, d.Log)

	r.GET("/", dashboardHandler.Root)
	r.GET("/health", dashboardHandler.Health)
	if d.WebSocket != nil {
		r.GET("/ws", gin.WrapF(d.WebSocket))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("", dashboardHandler.Index)

		// Sync Routes
		apiGroup.POST("/sync-manual", dashboardHandler.SyncManual)
		apiGroup.GET("/sync/stats", dashboardHandler.SyncStats)

		// Board Routes
		apiGroup.GET("/contatos", contactHandler.GetBoard)
		apiGroup.POST("/salvar-contatos", contactHandler.SaveBoard)
		apiGroup.POST("/marcar-stop", contactHandler.MarkStop)
		apiGroup.POST("/remover-stop", contactHandler.ClearStop)

		// Messaging Routes
		apiGroup.POST("/enviar-mensagem", whatsappHandler.SendMessage)
		apiGroup.POST("/enviar-midia", whatsappHandler.SendMedia)
		apiGroup.GET("/mensagens", whatsappHandler.ListConversations)
		apiGroup.GET("/mensagens/:numero", whatsappHandler.GetHistory)

		whatsappGroup := apiGroup.Group("/whatsapp")
		{
			whatsappGroup.GET("/status", whatsappHandler.GetStatus)
			whatsappGroup.POST("/logout", whatsappHandler.Logout)
		}
	}

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}
