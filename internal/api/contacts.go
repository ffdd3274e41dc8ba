package api

import (
	"encoding/json"
	"net/http"

	"leadboard/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContactHandler struct {
	Board BoardService
	Flags FlagService
	log   *zap.Logger
}

func NewContactHandler(board BoardService, flags FlagService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{Board: board, Flags: flags, log: log.Named("api.contacts")}
}

// GetBoard returns the stored board merged with contacts that have no bucket yet.
// The response is the bare bucket array the board UI renders.
func (h *ContactHandler) GetBoard(c *gin.Context) {
	board, err := h.Board.MergedBoard(c.Request.Context())
	if err != nil {
		h.log.Error("load board", zap.Error(err))
		fail(c, "Erro ao carregar dados do Kanban", err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *ContactHandler) SaveBoard(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c, "Formato de dados inválido. Esperado um array.")
		return
	}
	var board models.Board
	if err := json.Unmarshal(raw, &board); err != nil || board == nil {
		badRequest(c, "Formato de dados inválido. Esperado um array.")
		return
	}

	if err := h.Board.SaveBoard(c.Request.Context(), board); err != nil {
		h.log.Error("save board", zap.Error(err))
		fail(c, "Erro ao salvar dados", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "mensagem": "Estrutura salva com sucesso!"})
}

type StopRequest struct {
	ContactID string `json:"contactId"`
}

func (h *ContactHandler) MarkStop(c *gin.Context) {
	h.setStop(c, true)
}

func (h *ContactHandler) ClearStop(c *gin.Context) {
	h.setStop(c, false)
}

func (h *ContactHandler) setStop(c *gin.Context, value bool) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContactID == "" {
		badRequest(c, "ID do contato é obrigatório.")
		return
	}

	res, err := h.Flags.SetStopFlag(c.Request.Context(), req.ContactID, value)
	if err != nil {
		h.log.Error("set stop flag", zap.String("contact", req.ContactID), zap.Bool("stop", value), zap.Error(err))
		fail(c, "", err)
		return
	}

	msg := "Status STOP atualizado com sucesso na planilha e no sistema."
	if !value {
		msg = "Status STOP removido com sucesso na planilha e no sistema."
	}
	c.JSON(http.StatusOK, gin.H{"sucesso": true, "mensagem": msg, "resultado": res})
}
