package transport

// file: internal/transport/in_memory_transport.go

import (
	"context"
	"sync"
)

// InMemoryTransport is one end of an in-process transport pair. Closing
// either end makes reads on both ends fail with a closed error once buffered
// frames are drained. Frames are passed through unvalidated.
type InMemoryTransport struct {
	incoming chan []byte
	outgoing chan []byte

	closed     chan struct{}
	peerClosed chan struct{}
	closeOnce  *sync.Once
}

// InMemoryTransportPair holds two linked transports.
type InMemoryTransportPair struct {
	ClientTransport *InMemoryTransport
	ServerTransport *InMemoryTransport
}

// NewInMemoryTransportPair creates two linked transports. Frames written to
// one are read from the other.
func NewInMemoryTransportPair() *InMemoryTransportPair {
	clientToServer := make(chan []byte, 100)
	serverToClient := make(chan []byte, 100)
	clientClosed := make(chan struct{})
	serverClosed := make(chan struct{})

	return &InMemoryTransportPair{
		ClientTransport: &InMemoryTransport{
			incoming:   serverToClient,
			outgoing:   clientToServer,
			closed:     clientClosed,
			peerClosed: serverClosed,
			closeOnce:  &sync.Once{},
		},
		ServerTransport: &InMemoryTransport{
			incoming:   clientToServer,
			outgoing:   serverToClient,
			closed:     serverClosed,
			peerClosed: clientClosed,
			closeOnce:  &sync.Once{},
		},
	}
}

// ReadMessage implements Transport.ReadMessage.
func (t *InMemoryTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, NewClosedError("read")
	default:
	}

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.closed:
		return nil, NewClosedError("read")
	case msg := <-t.incoming:
		return msg, nil
	case <-t.peerClosed:
		// Deliver what the peer wrote before it went away.
		select {
		case msg := <-t.incoming:
			return msg, nil
		default:
		}
		return nil, NewError(ErrTransportClosed, "connection closed by peer", nil)
	}
}

// WriteMessage implements Transport.WriteMessage.
func (t *InMemoryTransport) WriteMessage(ctx context.Context, message []byte) error {
	select {
	case <-t.closed:
		return NewClosedError("write")
	case <-t.peerClosed:
		return NewError(ErrTransportClosed, "connection closed by peer", nil)
	default:
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message)
	}

	buf := make([]byte, len(message))
	copy(buf, message)
	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case <-t.closed:
		return NewClosedError("write")
	case t.outgoing <- buf:
		return nil
	}
}

// Close implements Transport.Close.
func (t *InMemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// Close closes both ends.
func (p *InMemoryTransportPair) Close() {
	_ = p.ClientTransport.Close()
	_ = p.ServerTransport.Close()
}
