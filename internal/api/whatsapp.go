package api

import (
	"net/http"
	"strings"

	"leadboard/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WhatsAppHandler struct {
	Client  Messenger
	History HistoryReader
	log     *zap.Logger
}

func NewWhatsAppHandler(client Messenger, history HistoryReader, log *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{Client: client, History: history, log: log.Named("api.whatsapp")}
}

type SendRequest struct {
	Numero   string `json:"numero"`
	Mensagem string `json:"mensagem"`
}

// SendMessage sends a text message to a contact.
func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Numero == "" || req.Mensagem == "" {
		badRequest(c, "Número e mensagem são obrigatórios.")
		return
	}

	entry, err := h.Client.SendMessage(c.Request.Context(), req.Numero, req.Mensagem)
	if err != nil {
		h.log.Warn("send message", zap.String("to", req.Numero), zap.Error(err))
		fail(c, "Falha ao enviar mensagem", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sucesso": true, "mensagem": "Mensagem enviada para " + req.Numero, "entrada": entry})
}

type MediaRequest struct {
	Numero  string `json:"numero"`
	Caminho string `json:"caminho"`
	Tipo    string `json:"tipo"`
	Legenda string `json:"legenda"`
}

// SendMedia sends a file of the server's media directory; caminho is relative to it.
func (h *WhatsAppHandler) SendMedia(c *gin.Context) {
	var req MediaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Numero == "" || req.Caminho == "" || req.Tipo == "" {
		badRequest(c, "Número, caminho e tipo são obrigatórios.")
		return
	}

	kind := models.MessageKind(strings.ToLower(req.Tipo))
	if err := h.Client.SendMedia(c.Request.Context(), req.Numero, req.Caminho, kind, req.Legenda); err != nil {
		h.log.Warn("send media", zap.String("to", req.Numero), zap.String("kind", req.Tipo), zap.Error(err))
		fail(c, "Falha ao enviar mídia", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sucesso": true, "mensagem": "Mídia enviada para " + req.Numero})
}

// GetHistory returns the in-memory conversation with a contact.
func (h *WhatsAppHandler) GetHistory(c *gin.Context) {
	numero := c.Param("numero")
	if strings.TrimSpace(numero) == "" {
		badRequest(c, "Número do contato é obrigatório.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "historico": h.History.History(numero)})
}

// ListConversations lists the contacts that have history.
func (h *WhatsAppHandler) ListConversations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "contatos": h.History.Contacts()})
}

func (h *WhatsAppHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "whatsapp": h.Client.Status()})
}

func (h *WhatsAppHandler) Logout(c *gin.Context) {
	if !h.Client.Logout(c.Request.Context()) {
		c.JSON(http.StatusInternalServerError, gin.H{"sucesso": false, "erro": "Falha ao desconectar do WhatsApp."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "mensagem": "Sessão encerrada."})
}
