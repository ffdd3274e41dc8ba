package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"leadboard/internal/database"
	"leadboard/internal/history"
	"leadboard/internal/logger"
	"leadboard/pkg/models"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waEvents "go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowDialer connects through the multi-device web protocol. Session keys
// live in a sqlite file inside the auth folder.
type WhatsmeowDialer struct {
	log   *zap.Logger
	waLog waLog.Logger
}

func NewWhatsmeowDialer(log *zap.Logger) *WhatsmeowDialer {
	return &WhatsmeowDialer{
		log:   log.Named("whatsmeow"),
		waLog: logger.WhatsApp(log.Named("whatsmeow")),
	}
}

type deviceCredentials struct {
	db        *sql.DB
	container *sqlstore.Container
	device    *store.Device
}

func (c *deviceCredentials) Save(ctx context.Context) error {
	return c.device.Save(ctx)
}

func (c *deviceCredentials) Registered() bool {
	return c.device.ID != nil
}

func (c *deviceCredentials) close() error {
	return c.container.Close()
}

func (d *WhatsmeowDialer) LoadCredentials(ctx context.Context, folder string) (Credentials, error) {
	db, err := database.OpenSessionDB(folder)
	if err != nil {
		return nil, err
	}

	container := sqlstore.NewWithDB(db, "sqlite3", d.waLog.Sub("store"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrade session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}
	return &deviceCredentials{db: db, container: container, device: device}, nil
}

func (d *WhatsmeowDialer) Version(context.Context) (string, error) {
	return store.GetWAVersion().String(), nil
}

func (d *WhatsmeowDialer) Dial(ctx context.Context, creds Credentials, version string, handle func(Event)) (Conn, error) {
	dc, ok := creds.(*deviceCredentials)
	if !ok {
		return nil, errors.New("credentials were not loaded by this dialer")
	}

	client := whatsmeow.NewClient(dc.device, d.waLog.Sub("client"))
	client.EnableAutoReconnect = false
	client.AddEventHandler(func(evt interface{}) {
		if e := translate(evt); e != nil {
			handle(e)
		}
	})

	// the QR channel must outlive the dial context
	qrCtx, cancel := context.WithCancel(context.Background())
	c := &whatsmeowConn{client: client, creds: dc, cancel: cancel}

	if !dc.Registered() {
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open pairing channel: %w", err)
		}
		go func() {
			for item := range qrChan {
				switch item.Event {
				case whatsmeow.QRChannelEventCode:
					handle(PairingCode{Code: item.Code})
				case whatsmeow.QRChannelTimeout.Event:
					handle(Closed{Reason: "pairing timed out"})
				case whatsmeow.QRChannelEventError:
					handle(Closed{Reason: fmt.Sprintf("pairing failed: %v", item.Error)})
				}
			}
		}()
	}

	if err := client.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect (version %s): %w", version, err)
	}
	d.log.Debug("socket opened", zap.String("version", version), zap.Bool("registered", dc.Registered()))
	return c, nil
}

type whatsmeowConn struct {
	client    *whatsmeow.Client
	creds     *deviceCredentials
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func toJID(address string) types.JID {
	user := address
	if i := strings.IndexByte(address, '@'); i >= 0 {
		user = address[:i]
	}
	return types.NewJID(user, types.DefaultUserServer)
}

func (c *whatsmeowConn) SendText(ctx context.Context, to, text string) (string, error) {
	resp, err := c.client.SendMessage(ctx, toJID(to), &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *whatsmeowConn) SendMedia(ctx context.Context, to string, media Media) (string, error) {
	var appInfo whatsmeow.MediaType
	switch media.Kind {
	case models.KindImage:
		appInfo = whatsmeow.MediaImage
	case models.KindVideo:
		appInfo = whatsmeow.MediaVideo
	case models.KindAudio:
		appInfo = whatsmeow.MediaAudio
	case models.KindDocument:
		appInfo = whatsmeow.MediaDocument
	default:
		return "", fmt.Errorf("no upload type for %q", media.Kind)
	}

	up, err := c.client.Upload(ctx, media.Data, appInfo)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	msg := &waE2E.Message{}
	switch media.Kind {
	case models.KindImage:
		msg.ImageMessage = &waE2E.ImageMessage{
			Caption:       optional(media.Caption),
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	case models.KindVideo:
		msg.VideoMessage = &waE2E.VideoMessage{
			Caption:       optional(media.Caption),
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	case models.KindAudio:
		msg.AudioMessage = &waE2E.AudioMessage{
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	case models.KindDocument:
		msg.DocumentMessage = &waE2E.DocumentMessage{
			Mimetype:      proto.String(media.Mimetype),
			FileName:      proto.String(media.FileName),
			Title:         proto.String(media.FileName),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	}

	resp, err := c.client.SendMessage(ctx, toJID(to), msg)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *whatsmeowConn) Logout(ctx context.Context) error {
	return c.client.Logout(ctx)
}

// Close disconnects without logging out and releases the session database.
func (c *whatsmeowConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.client.Disconnect()
		err = c.creds.close()
	})
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}

func translate(evt interface{}) Event {
	switch v := evt.(type) {
	case *waEvents.Connected:
		return Opened{}
	case *waEvents.PairSuccess:
		return CredentialsUpdated{}
	case *waEvents.LoggedOut:
		return Closed{LoggedOut: true, Reason: v.Reason.String()}
	case *waEvents.ConnectFailure:
		return Closed{LoggedOut: v.Reason.IsLoggedOut(), Reason: v.Reason.String()}
	case *waEvents.StreamReplaced:
		return Closed{Reason: "stream replaced"}
	case *waEvents.TemporaryBan:
		return Closed{Reason: v.String()}
	case *waEvents.Disconnected:
		return Closed{Reason: "disconnected"}
	case *waEvents.Message:
		return Messages{Batch: []history.Inbound{inbound(v)}}
	}
	return nil
}

func inbound(v *waEvents.Message) history.Inbound {
	in := history.Inbound{
		ID:        v.Info.ID,
		Chat:      v.Info.Chat.String(),
		FromMe:    v.Info.IsFromMe,
		Timestamp: v.Info.Timestamp,
	}
	if v.Info.Chat == types.StatusBroadcastJID {
		in.Chat = history.StatusBroadcast
	}

	msg := v.Message
	if msg == nil {
		return in
	}
	p := &history.Payload{Conversation: msg.GetConversation()}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		p.ExtendedText = &history.Text{Text: ext.GetText()}
	}
	if img := msg.GetImageMessage(); img != nil {
		p.Image = &history.Media{Caption: img.GetCaption()}
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		p.Video = &history.Media{Caption: vid.GetCaption()}
	}
	if msg.GetAudioMessage() != nil {
		p.Audio = &history.Media{}
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		p.Document = &history.Media{Caption: doc.GetCaption()}
	}
	if msg.GetStickerMessage() != nil {
		p.Sticker = &history.Media{}
	}
	in.Payload = p
	return in
}
