package whatsapp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leadboard/internal/apperr"
	"leadboard/internal/events"
	"leadboard/internal/history"
	"leadboard/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCreds struct {
	mu    sync.Mutex
	saves int
}

func (c *fakeCreds) Save(context.Context) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return nil
}

func (c *fakeCreds) Registered() bool { return true }

type sent struct {
	to    string
	text  string
	media Media
}

type fakeConn struct {
	mu        sync.Mutex
	sent      []sent
	closed    bool
	loggedOut bool
	logoutErr error
}

func (c *fakeConn) SendText(_ context.Context, to, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{to: to, text: text})
	return "MSG1", nil
}

func (c *fakeConn) SendMedia(_ context.Context, to string, media Media) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{to: to, media: media})
	return "MSG2", nil
}

func (c *fakeConn) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logoutErr != nil {
		return c.logoutErr
	}
	c.loggedOut = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	creds   *fakeCreds
	dials   int
	handler func(Event)
	conns   []*fakeConn
	dialErr error
	dialed  chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{creds: &fakeCreds{}, dialed: make(chan struct{}, 16)}
}

func (d *fakeDialer) LoadCredentials(context.Context, string) (Credentials, error) {
	return d.creds, nil
}

func (d *fakeDialer) Version(context.Context) (string, error) { return "2.3000.0", nil }

func (d *fakeDialer) Dial(_ context.Context, _ Credentials, _ string, handle func(Event)) (Conn, error) {
	d.mu.Lock()
	defer func() { d.dialed <- struct{}{} }()
	defer d.mu.Unlock()
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.handler = handle
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) emit(e Event) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	h(e)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type harness struct {
	dialer  *fakeDialer
	manager *Manager
	router  *history.Router
	bus     *events.Bus
	sub     <-chan events.Event
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	bus := events.NewBus(zap.NewNop())
	sub, cancel := bus.Subscribe(64)
	router := history.NewRouter(bus, zap.NewNop())
	dialer := newFakeDialer()
	if opts.AuthFolder == "" {
		opts.AuthFolder = filepath.Join(t.TempDir(), "auth_info")
	}
	m := NewManager(dialer, router, bus, opts, zap.NewNop())
	t.Cleanup(func() {
		m.Shutdown()
		cancel()
		bus.Close()
	})
	return &harness{dialer: dialer, manager: m, router: router, bus: bus, sub: sub}
}

func (h *harness) next(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.sub:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, h.manager.Initialize(context.Background()))
	h.dialer.emit(Opened{})
	require.True(t, h.manager.IsConnected())
}

func TestManager_Transitions(t *testing.T) {
	h := newHarness(t, Options{ReconnectDelay: 20 * time.Millisecond})
	m := h.manager

	assert.Equal(t, models.StateDisconnected, m.State())
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, models.StateConnecting, m.State())

	// a second initialize while connecting is a no-op
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, 1, h.dialer.dialCount())

	h.dialer.emit(PairingCode{Code: "2@qr"})
	assert.Equal(t, "2@qr", h.next(t, events.KindQR).Data.(events.QRData).Code)
	assert.Equal(t, "2@qr", m.LastQR())

	h.dialer.emit(Opened{})
	h.next(t, events.KindReady)
	assert.Equal(t, models.StateConnected, m.State())
	assert.Empty(t, m.LastQR())

	h.dialer.emit(Closed{Reason: "connection lost"})
	assert.Equal(t, models.StateDisconnected, m.State())
	e := h.next(t, events.KindDisconnected)
	assert.True(t, e.Data.(events.DisconnectedData).ShouldReconnect)

	<-h.dialer.dialed // first dial
	<-h.dialer.dialed // the reconnect
	assert.Equal(t, models.StateConnecting, m.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, h.dialer.dialCount(), "exactly one reconnect")
	h.dialer.mu.Lock()
	first := h.dialer.conns[0]
	h.dialer.mu.Unlock()
	assert.True(t, first.isClosed(), "previous connection released")
}

func TestManager_DuplicateCloseSchedulesOnce(t *testing.T) {
	h := newHarness(t, Options{ReconnectDelay: 20 * time.Millisecond})
	h.connect(t)

	h.dialer.emit(Closed{Reason: "a"})
	h.dialer.emit(Closed{Reason: "b"})

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, h.dialer.dialCount())
}

func TestManager_LoggedOutDoesNotReconnect(t *testing.T) {
	h := newHarness(t, Options{ReconnectDelay: 10 * time.Millisecond})
	h.connect(t)

	h.dialer.emit(Closed{LoggedOut: true, Reason: "logged out"})
	e := h.next(t, events.KindDisconnected)
	assert.False(t, e.Data.(events.DisconnectedData).ShouldReconnect)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dialCount())
	assert.Equal(t, models.StateDisconnected, h.manager.State())
}

func TestManager_ReconnectCap(t *testing.T) {
	h := newHarness(t, Options{ReconnectDelay: 5 * time.Millisecond, MaxReconnectAttempts: 1})
	h.connect(t)

	h.dialer.emit(Closed{Reason: "first"})
	<-h.dialer.dialed
	<-h.dialer.dialed

	h.dialer.emit(Closed{Reason: "second"})
	h.next(t, events.KindDisconnected)
	e := h.next(t, events.KindDisconnected)
	assert.False(t, e.Data.(events.DisconnectedData).ShouldReconnect)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, h.dialer.dialCount())
}

func TestManager_DialFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.dialer.dialErr = errors.New("network down")

	err := h.manager.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.StateDisconnected, h.manager.State())
	h.next(t, events.KindError)
}

func TestManager_CredentialsSavedEveryTime(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.manager.Initialize(context.Background()))

	h.dialer.emit(CredentialsUpdated{})
	h.dialer.emit(CredentialsUpdated{})
	h.dialer.emit(CredentialsUpdated{})

	h.dialer.creds.mu.Lock()
	defer h.dialer.creds.mu.Unlock()
	assert.Equal(t, 3, h.dialer.creds.saves)
}

func TestManager_MessagesRoutedOnceArmed(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.manager.Initialize(context.Background()))

	batch := []history.Inbound{{ID: "1", Chat: "5511999990000@s.whatsapp.net", Payload: &history.Payload{Conversation: "oi"}}}
	h.dialer.emit(Messages{Batch: batch})
	assert.Empty(t, h.router.History("5511999990000"), "listener not armed before open")

	h.dialer.emit(Opened{})
	h.dialer.emit(Messages{Batch: batch})
	assert.Len(t, h.router.History("5511999990000"), 1)
	h.next(t, events.KindMessageReceived)
}

func TestManager_SendMessage(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.manager.SendMessage(context.Background(), "11999990000", "oi")
	assert.ErrorIs(t, err, apperr.ErrNotConnected)

	h.connect(t)
	entry, err := h.manager.SendMessage(context.Background(), "(11) 99999-0000", "oi")
	require.NoError(t, err)
	assert.Equal(t, "MSG1", entry.ID)
	assert.Equal(t, models.DirectionSent, entry.Direction)

	conn := h.dialer.lastConn()
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "5511999990000@c.us", conn.sent[0].to)

	got := h.router.History("5511999990000")
	require.Len(t, got, 1)
	assert.Equal(t, "oi", got[0].Message)

	e := h.next(t, events.KindMessageSent)
	assert.Equal(t, "5511999990000", e.Data.(events.MessageData).Contact)
}

func TestManager_SendRejectsNumberWithoutDigits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("png"), 0o600))
	h := newHarness(t, Options{MediaDir: dir})
	h.connect(t)

	_, err := h.manager.SendMessage(context.Background(), "joao", "oi")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	err = h.manager.SendMedia(context.Background(), "@c.us", "a.png", models.KindImage, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	assert.Empty(t, h.dialer.lastConn().sent)
	assert.Empty(t, h.router.Contacts())
}

func TestManager_SendMedia(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, Options{MediaDir: dir})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contrato.pdf"), []byte("%PDF-1.4"), 0o600))
	doc := "contrato.pdf"

	err := h.manager.SendMedia(context.Background(), "11999990000", doc, models.KindDocument, "")
	assert.ErrorIs(t, err, apperr.ErrNotConnected)

	h.connect(t)

	err = h.manager.SendMedia(context.Background(), "11999990000", doc, models.KindSticker, "")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedMediaKind)

	require.NoError(t, h.manager.SendMedia(context.Background(), "11999990000", doc, models.KindDocument, "ignored"))
	require.NoError(t, h.manager.SendMedia(context.Background(), "11999990000", doc, models.KindAudio, ""))

	conn := h.dialer.lastConn()
	require.Len(t, conn.sent, 2)
	assert.Equal(t, "application/pdf", conn.sent[0].media.Mimetype)
	assert.Equal(t, "contrato.pdf", conn.sent[0].media.FileName)
	assert.Empty(t, conn.sent[0].media.Caption)
	assert.Equal(t, []byte("%PDF-1.4"), conn.sent[0].media.Data)
	assert.Equal(t, "audio/mp4", conn.sent[1].media.Mimetype)

	err = h.manager.SendMedia(context.Background(), "11999990000", "missing.jpg", models.KindImage, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestManager_SendMediaStaysInMediaDir(t *testing.T) {
	base := t.TempDir()
	mediaDir := filepath.Join(base, "media")
	require.NoError(t, os.MkdirAll(filepath.Join(mediaDir, "fotos"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "fotos", "a.png"), []byte("png"), 0o600))
	secret := filepath.Join(base, "service-account-key.json")
	require.NoError(t, os.WriteFile(secret, []byte(`{"private_key":"x"}`), 0o600))
	require.NoError(t, os.Symlink(secret, filepath.Join(mediaDir, "key.json")))

	h := newHarness(t, Options{MediaDir: mediaDir})
	h.connect(t)

	for _, path := range []string{
		secret,
		"../service-account-key.json",
		"fotos/../../service-account-key.json",
		"key.json",
	} {
		err := h.manager.SendMedia(context.Background(), "11999990000", path, models.KindDocument, "")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, path)
	}
	assert.Empty(t, h.dialer.lastConn().sent)

	require.NoError(t, h.manager.SendMedia(context.Background(), "11999990000", "fotos/a.png", models.KindImage, "oi"))
	conn := h.dialer.lastConn()
	require.Len(t, conn.sent, 1)
	assert.Equal(t, []byte("png"), conn.sent[0].media.Data)
}

func TestManager_Logout(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "auth_info")
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "session.db"), []byte("x"), 0o600))

	h := newHarness(t, Options{AuthFolder: folder, ReconnectDelay: 10 * time.Millisecond})
	h.connect(t)

	assert.True(t, h.manager.Logout(context.Background()))
	h.next(t, events.KindLoggedOut)
	assert.Equal(t, models.StateDisconnected, h.manager.State())
	assert.True(t, h.dialer.lastConn().loggedOut)
	_, err := os.Stat(folder)
	assert.True(t, os.IsNotExist(err))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dialCount(), "logout never reconnects")
}

func TestManager_LogoutWhileReconnectPending(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "auth_info")
	require.NoError(t, os.MkdirAll(folder, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "session.db"), []byte("x"), 0o600))

	h := newHarness(t, Options{AuthFolder: folder, ReconnectDelay: 40 * time.Millisecond})
	h.connect(t)
	first := h.dialer.lastConn()

	h.dialer.emit(Closed{Reason: "connection lost"})
	require.Equal(t, models.StateDisconnected, h.manager.State())

	assert.True(t, h.manager.Logout(context.Background()))
	h.next(t, events.KindLoggedOut)
	assert.True(t, first.isClosed(), "stale connection released")
	assert.False(t, first.loggedOut, "no live connection to log out remotely")
	_, err := os.Stat(folder)
	assert.True(t, os.IsNotExist(err))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dialCount(), "pending reconnect cancelled")
	assert.Equal(t, models.StateDisconnected, h.manager.State())

	// an explicit initialize still starts a fresh pairing
	require.NoError(t, h.manager.Initialize(context.Background()))
	assert.Equal(t, 2, h.dialer.dialCount())
}

func TestManager_LogoutFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect(t)
	h.dialer.lastConn().logoutErr = errors.New("server refused")

	assert.False(t, h.manager.Logout(context.Background()))
	h.next(t, events.KindError)
	assert.True(t, h.manager.IsConnected())
}

func TestManager_ShutdownCancelsReconnect(t *testing.T) {
	h := newHarness(t, Options{ReconnectDelay: 30 * time.Millisecond})
	h.connect(t)

	h.dialer.emit(Closed{Reason: "drop"})
	h.manager.Shutdown()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dialCount())
	assert.NoError(t, h.manager.Initialize(context.Background()))
	assert.Equal(t, 1, h.dialer.dialCount(), "initialize after shutdown is ignored")
}
