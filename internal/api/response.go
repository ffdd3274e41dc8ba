package api

import (
	"context"
	"net/http"

	"leadboard/internal/apperr"
	"leadboard/internal/leads"
	"leadboard/internal/whatsapp"
	"leadboard/pkg/models"

	"github.com/gin-gonic/gin"
)

type BoardService interface {
	MergedBoard(ctx context.Context) (models.Board, error)
	SaveBoard(ctx context.Context, board models.Board) error
}

type FlagService interface {
	SetStopFlag(ctx context.Context, key string, value bool) (leads.FlagResult, error)
}

type SyncService interface {
	RunNow(ctx context.Context) (leads.Result, error)
	Stats() models.SyncStats
}

type Messenger interface {
	SendMessage(ctx context.Context, target, text string) (models.HistoryEntry, error)
	SendMedia(ctx context.Context, target, path string, kind models.MessageKind, caption string) error
	Logout(ctx context.Context) bool
	Status() whatsapp.Status
}

type HistoryReader interface {
	History(address string) []models.HistoryEntry
	Contacts() []string
}

// fail writes the error envelope with the status mapped from err.
func fail(c *gin.Context, prefix string, err error) {
	msg := err.Error()
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"sucesso": false, "erro": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"sucesso": false, "erro": msg})
}
