// Package bus connects to a D-Bus message bus and subscribes to the signals
// of one object interface.
package bus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/mcncl/dbusjq/internal/errors"
	"github.com/mcncl/dbusjq/internal/models"
)

// Kind selects which bus to connect to.
type Kind string

const (
	System  Kind = "system"
	Session Kind = "session"
)

// signalBuffer is the depth of the channel godbus feeds; the driver still
// consumes one signal at a time.
const signalBuffer = 64

// ParseKind converts a --bus value.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case System:
		return System, nil
	case Session:
		return Session, nil
	case "":
		return "", errors.ErrMissingBus
	default:
		return "", fmt.Errorf("%w %q", errors.ErrInvalidBus, s)
	}
}

// Proxy is a connection bound to one service, object path and interface.
type Proxy struct {
	conn    *dbus.Conn
	handler *signalHandler
	target  Target
	logger  *slog.Logger
}

// Connect opens a private connection to the selected bus and binds it to
// target.
func Connect(kind Kind, target Target, logger *slog.Logger) (*Proxy, error) {
	if err := target.Validate(); err != nil {
		return nil, errors.NewConnectionError("couldn't generate proxy to bus", err)
	}

	var (
		conn    *dbus.Conn
		err     error
		handler = newSignalHandler()
	)
	switch kind {
	case System:
		conn, err = dbus.ConnectSystemBus(handler.options()...)
	case Session:
		conn, err = dbus.ConnectSessionBus(handler.options()...)
	default:
		return nil, errors.NewConnectionError("couldn't generate proxy to bus", fmt.Errorf("%w %q", errors.ErrInvalidBus, kind))
	}
	if err != nil {
		return nil, errors.NewConnectionError(fmt.Sprintf("couldn't connect to %s bus", kind), err)
	}

	proxy := &Proxy{conn: conn, handler: handler, target: target, logger: logger}
	proxy.checkOwner()
	return proxy, nil
}

// checkOwner warns when nobody owns the service yet. Signals from a
// service that appears later are still delivered, so this is not fatal.
func (p *Proxy) checkOwner() {
	if strings.HasPrefix(p.target.Service, ":") {
		return
	}
	var hasOwner bool
	err := p.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, p.target.Service).Store(&hasOwner)
	switch {
	case err != nil:
		p.logger.Warn("couldn't check service owner", "service", p.target.Service, "error", err)
	case !hasOwner:
		p.logger.Warn("service has no owner yet, waiting for it to appear", "service", p.target.Service)
	}
}

// Subscribe installs a match rule for the target's signals, restricted to
// member when it is not empty.
func (p *Proxy) Subscribe(member string) (*Subscription, error) {
	what := "all signals"
	if member != "" {
		if err := ValidateMemberName(member); err != nil {
			return nil, errors.NewSubscriptionError("couldn't start receiving for the signal", err)
		}
		what = fmt.Sprintf("signal %s", member)
	}

	options := matchOptions(p.target, member)
	if err := p.conn.AddMatchSignal(options...); err != nil {
		return nil, errors.NewSubscriptionError(fmt.Sprintf("couldn't start receiving for %s", what), err)
	}

	ch := make(chan *dbus.Signal, signalBuffer)
	p.conn.Signal(ch)

	p.logger.Info("subscribed",
		"service", p.target.Service,
		"path", p.target.Path,
		"interface", p.target.Interface,
		"member", member,
	)
	return &Subscription{
		conn:    p.conn,
		handler: p.handler,
		ch:      ch,
		target:  p.target,
		member:  member,
		options: options,
	}, nil
}

// Close closes the underlying connection.
func (p *Proxy) Close() error {
	return p.conn.Close()
}

func matchOptions(target Target, member string) []dbus.MatchOption {
	options := []dbus.MatchOption{
		dbus.WithMatchSender(target.Service),
		dbus.WithMatchObjectPath(dbus.ObjectPath(target.Path)),
		dbus.WithMatchInterface(target.Interface),
	}
	if member != "" {
		options = append(options, dbus.WithMatchMember(member))
	}
	return options
}

// Subscription yields the signals matching one match rule.
type Subscription struct {
	conn    *dbus.Conn
	handler *signalHandler
	ch      chan *dbus.Signal
	target  Target
	member  string
	options []dbus.MatchOption
}

// Next blocks until a matching signal arrives. It returns io.EOF when the
// connection is closed and ctx.Err() when ctx is done.
func (s *Subscription) Next(ctx context.Context) (models.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return models.Event{}, ctx.Err()
		case sig, ok := <-s.ch:
			if !ok {
				return models.Event{}, io.EOF
			}
			if sig == nil {
				continue
			}
			var signature string
			if s.handler != nil {
				signature = s.handler.signature(sig.Sequence)
			}
			if !s.matches(sig) {
				continue
			}
			event := toEvent(sig)
			event.Signature = signature
			return event, nil
		}
	}
}

// matches filters out signals delivered to the connection by other match
// rules, such as NameAcquired from the bus itself.
func (s *Subscription) matches(sig *dbus.Signal) bool {
	if string(sig.Path) != s.target.Path {
		return false
	}
	iface, member := splitName(sig.Name)
	if iface != s.target.Interface {
		return false
	}
	return s.member == "" || member == s.member
}

// Close removes the match rule and stops delivery.
func (s *Subscription) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.RemoveSignal(s.ch)
	return s.conn.RemoveMatchSignal(s.options...)
}

func toEvent(sig *dbus.Signal) models.Event {
	iface, member := splitName(sig.Name)
	return models.Event{
		Sender:    sig.Sender,
		Path:      string(sig.Path),
		Interface: iface,
		Member:    member,
		Body:      sig.Body,
	}
}

// splitName splits a signal name of the form "interface.Member".
func splitName(name string) (iface, member string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
