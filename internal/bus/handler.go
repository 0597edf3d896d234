package bus

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// signalHandler delivers signals to subscription channels in the order the
// connection read them, and remembers the body signature each signal's
// message header carried. godbus drops the header when it builds the
// dbus.Signal, so the signature is recorded by an incoming interceptor and
// paired with the signal's sequence number.
//
// intercept and DeliverSignal both run on the connection's reader goroutine,
// one message after the other, so pending needs no locking.
type signalHandler struct {
	next    dbus.SignalHandler
	pending string

	mu         sync.Mutex
	signatures map[dbus.Sequence]string
}

func newSignalHandler() *signalHandler {
	return &signalHandler{
		next:       dbus.NewSequentialSignalHandler(),
		signatures: make(map[dbus.Sequence]string),
	}
}

// options returns the connection options that install the handler.
func (h *signalHandler) options() []dbus.ConnOption {
	return []dbus.ConnOption{
		dbus.WithSignalHandler(h),
		dbus.WithIncomingInterceptor(h.intercept),
	}
}

func (h *signalHandler) intercept(msg *dbus.Message) {
	if msg.Type != dbus.TypeSignal {
		return
	}
	h.pending = ""
	if sig, ok := msg.Headers[dbus.FieldSignature].Value().(dbus.Signature); ok {
		h.pending = sig.String()
	}
}

// DeliverSignal implements dbus.SignalHandler.
func (h *signalHandler) DeliverSignal(iface, name string, signal *dbus.Signal) {
	if h.pending != "" {
		h.mu.Lock()
		h.signatures[signal.Sequence] = h.pending
		h.mu.Unlock()
	}
	h.pending = ""
	h.next.DeliverSignal(iface, name, signal)
}

// AddSignal implements dbus.SignalRegistrar.
func (h *signalHandler) AddSignal(ch chan<- *dbus.Signal) {
	h.next.(dbus.SignalRegistrar).AddSignal(ch)
}

// RemoveSignal implements dbus.SignalRegistrar.
func (h *signalHandler) RemoveSignal(ch chan<- *dbus.Signal) {
	h.next.(dbus.SignalRegistrar).RemoveSignal(ch)
}

// Terminate implements dbus.Terminator. It closes every registered channel.
func (h *signalHandler) Terminate() {
	h.next.(dbus.Terminator).Terminate()
}

// signature returns and forgets the body signature recorded for sequence.
// Entries for signals nobody consumed, such as NameAcquired before the
// first subscription, are dropped once a later signal is taken.
func (h *signalHandler) signature(sequence dbus.Sequence) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	sig := h.signatures[sequence]
	for seq := range h.signatures {
		if seq <= sequence {
			delete(h.signatures, seq)
		}
	}
	return sig
}
