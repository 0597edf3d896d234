package bus

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/dbusjq/internal/errors"
	"github.com/mcncl/dbusjq/internal/models"
)

var testTarget = Target{
	Service:   "org.freedesktop.NetworkManager",
	Path:      "/org/freedesktop/NetworkManager",
	Interface: "org.freedesktop.DBus.Properties",
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("system")
	require.NoError(t, err)
	assert.Equal(t, System, kind)

	kind, err = ParseKind("Session")
	require.NoError(t, err)
	assert.Equal(t, Session, kind)

	_, err = ParseKind("")
	assert.ErrorIs(t, err, errors.ErrMissingBus)

	_, err = ParseKind("starter")
	assert.ErrorIs(t, err, errors.ErrInvalidBus)
}

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{"valid", testTarget, nil},
		{"unique service name", Target{Service: ":1.42", Path: "/", Interface: "a.b"}, nil},
		{"hyphenated service", Target{Service: "org.example.my-service", Path: "/a/b_c", Interface: "org.example.Iface"}, nil},
		{"single element service", Target{Service: "example", Path: "/", Interface: "a.b"}, errors.ErrInvalidName},
		{"empty service", Target{Service: "", Path: "/", Interface: "a.b"}, errors.ErrInvalidName},
		{"digit leading element", Target{Service: "org.1example", Path: "/", Interface: "a.b"}, errors.ErrInvalidName},
		{"relative path", Target{Service: "a.b", Path: "org/example", Interface: "a.b"}, errors.ErrInvalidPath},
		{"trailing slash", Target{Service: "a.b", Path: "/org/", Interface: "a.b"}, errors.ErrInvalidPath},
		{"hyphen in interface", Target{Service: "a.b", Path: "/", Interface: "org.my-iface"}, errors.ErrInvalidName},
		{"empty interface element", Target{Service: "a.b", Path: "/", Interface: "org..Iface"}, errors.ErrInvalidName},
		{"too long", Target{Service: "a." + strings.Repeat("b", 300), Path: "/", Interface: "a.b"}, errors.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateMemberName(t *testing.T) {
	assert.NoError(t, ValidateMemberName("PropertiesChanged"))
	assert.NoError(t, ValidateMemberName("_private1"))
	assert.ErrorIs(t, ValidateMemberName(""), errors.ErrInvalidName)
	assert.ErrorIs(t, ValidateMemberName("Has.Dot"), errors.ErrInvalidName)
	assert.ErrorIs(t, ValidateMemberName("1Leading"), errors.ErrInvalidName)
}

func TestConnect_InvalidTarget(t *testing.T) {
	_, err := Connect(Session, Target{Service: "bad", Path: "/", Interface: "a.b"}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.AppError{Type: errors.ErrorTypeConnection})
	assert.ErrorIs(t, err, errors.ErrInvalidName)
}

func TestMatchOptions(t *testing.T) {
	assert.Len(t, matchOptions(testTarget, ""), 3)
	assert.Len(t, matchOptions(testTarget, "PropertiesChanged"), 4)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, iface, member string
	}{
		{"org.freedesktop.DBus.Properties.PropertiesChanged", "org.freedesktop.DBus.Properties", "PropertiesChanged"},
		{"Bare", "", "Bare"},
		{"", "", ""},
	}
	for _, tt := range tests {
		iface, member := splitName(tt.name)
		assert.Equal(t, tt.iface, iface, tt.name)
		assert.Equal(t, tt.member, member, tt.name)
	}
}

func newTestSubscription(member string) (*Subscription, chan *dbus.Signal) {
	ch := make(chan *dbus.Signal, 8)
	return &Subscription{ch: ch, target: testTarget, member: member}, ch
}

func signal(name string, body ...interface{}) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.7",
		Path:   dbus.ObjectPath(testTarget.Path),
		Name:   name,
		Body:   body,
	}
}

func TestSubscription_Next(t *testing.T) {
	sub, ch := newTestSubscription("")

	ch <- &dbus.Signal{Path: "/org/freedesktop/DBus", Name: "org.freedesktop.DBus.NameAcquired", Body: []interface{}{":1.99"}}
	ch <- signal("org.freedesktop.DBus.Properties.PropertiesChanged", "com.example.Iface", int32(42))
	close(ch)

	event, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Event{
		Sender:    ":1.7",
		Path:      testTarget.Path,
		Interface: "org.freedesktop.DBus.Properties",
		Member:    "PropertiesChanged",
		Body:      []interface{}{"com.example.Iface", int32(42)},
	}, event)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubscription_MemberFilter(t *testing.T) {
	sub, ch := newTestSubscription("PropertiesChanged")

	ch <- signal("org.freedesktop.DBus.Properties.Other")
	ch <- signal("org.freedesktop.DBus.Properties.PropertiesChanged", "x")

	event, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PropertiesChanged", event.Member)
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	sub, _ := newTestSubscription("")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscription_CloseWithoutConnection(t *testing.T) {
	sub, _ := newTestSubscription("")
	assert.NoError(t, sub.Close())
}

func TestSignalHandler_KeepsOrderPastBuffer(t *testing.T) {
	handler := newSignalHandler()
	ch := make(chan *dbus.Signal, signalBuffer)
	handler.AddSignal(ch)
	defer handler.Terminate()

	const burst = 400
	for i := 1; i <= burst; i++ {
		handler.DeliverSignal(testTarget.Interface, "Changed", &dbus.Signal{
			Path:     dbus.ObjectPath(testTarget.Path),
			Name:     testTarget.Interface + ".Changed",
			Sequence: dbus.Sequence(i),
		})
	}

	for i := 1; i <= burst; i++ {
		select {
		case sig := <-ch:
			require.Equal(t, dbus.Sequence(i), sig.Sequence)
		case <-time.After(5 * time.Second):
			t.Fatalf("signal %d was not delivered", i)
		}
	}
}

func signalMessage(signature string) *dbus.Message {
	msg := &dbus.Message{
		Type:    dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{},
	}
	if signature != "" {
		msg.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.ParseSignatureMust(signature))
	}
	return msg
}

func TestSubscription_CarriesHeaderSignature(t *testing.T) {
	handler := newSignalHandler()
	ch := make(chan *dbus.Signal, signalBuffer)
	handler.AddSignal(ch)
	defer handler.Terminate()
	sub := &Subscription{handler: handler, ch: ch, target: testTarget}

	deliver := func(seq int, signature string, body ...interface{}) {
		handler.intercept(signalMessage(signature))
		sig := signal(testTarget.Interface+".Changed", body...)
		sig.Sequence = dbus.Sequence(seq)
		handler.DeliverSignal(testTarget.Interface, "Changed", sig)
	}

	deliver(1, "a(ii)", [][]interface{}{})
	// a method reply read between signals does not reset the pairing
	handler.intercept(&dbus.Message{Type: dbus.TypeMethodReply})
	deliver(2, "sa{s(ii)}", "x", map[string][]interface{}{})
	deliver(3, "")

	for _, expected := range []string{"a(ii)", "sa{s(ii)}", ""} {
		event, err := sub.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, event.Signature)
	}
	assert.Empty(t, handler.signatures)
}

func TestSignalHandler_DropsUnconsumedSignatures(t *testing.T) {
	handler := newSignalHandler()

	handler.intercept(signalMessage("s"))
	handler.DeliverSignal("org.freedesktop.DBus", "NameAcquired", &dbus.Signal{Sequence: 1})
	handler.intercept(signalMessage("i"))
	handler.DeliverSignal(testTarget.Interface, "Changed", &dbus.Signal{Sequence: 2})

	assert.Equal(t, "i", handler.signature(2))
	assert.Empty(t, handler.signatures)
}
