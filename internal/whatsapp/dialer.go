package whatsapp

import (
	"context"

	"leadboard/internal/history"
	"leadboard/pkg/models"
)

// Credentials is the persisted session material of one device.
type Credentials interface {
	Save(ctx context.Context) error
	Registered() bool
}

// Dialer opens connections to WhatsApp. The Manager owns the lifecycle; the
// Dialer only translates protocol events into Event values.
type Dialer interface {
	LoadCredentials(ctx context.Context, folder string) (Credentials, error)
	Version(ctx context.Context) (string, error)
	Dial(ctx context.Context, creds Credentials, version string, handle func(Event)) (Conn, error)
}

// Conn is one live connection.
type Conn interface {
	SendText(ctx context.Context, to, text string) (id string, err error)
	SendMedia(ctx context.Context, to string, media Media) (id string, err error)
	Logout(ctx context.Context) error
	Close() error
}

type Media struct {
	Kind     models.MessageKind
	Data     []byte
	Mimetype string
	FileName string
	Caption  string
}

// Event is one of CredentialsUpdated, PairingCode, Opened, Closed or Messages.
type Event interface {
	sessionEvent()
}

type CredentialsUpdated struct{}

type PairingCode struct {
	Code string
}

type Opened struct{}

// Closed reports the end of a connection. LoggedOut means the session was
// invalidated remotely and must not be resumed.
type Closed struct {
	LoggedOut bool
	Reason    string
}

type Messages struct {
	Batch []history.Inbound
}

func (CredentialsUpdated) sessionEvent() {}
func (PairingCode) sessionEvent()        {}
func (Opened) sessionEvent()             {}
func (Closed) sessionEvent()             {}
func (Messages) sessionEvent()           {}
