package handlers

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// outboxSize bounds the messages waiting for one connection.
const outboxSize = 256

// connWriter owns every write to one websocket, so messages leave in the order they were
// queued no matter which goroutine queued them.
type connWriter struct {
	c      *websocket.Conn
	out    chan []byte
	stop   chan struct{}
	done   chan struct{}
	roomID uuid.UUID
	logger *logrus.Logger
}

func newConnWriter(c *websocket.Conn, roomID uuid.UUID, logger *logrus.Logger) *connWriter {
	w := &connWriter{
		c:      c,
		out:    make(chan []byte, outboxSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		roomID: roomID,
		logger: logger,
	}
	go w.run()
	return w
}

func (w *connWriter) run() {
	defer close(w.done)
	for {
		select {
		case msg := <-w.out:
			w.write(msg)
		case <-w.stop:
			for {
				select {
				case msg := <-w.out:
					w.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (w *connWriter) write(msg []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := w.c.Write(ctx, websocket.MessageText, msg); err != nil {
		w.logger.Debugf("Failed to write message in room %s: %v", w.roomID, err)
	}
}

// send queues msg behind everything already queued for the connection.
func (w *connWriter) send(msg []byte) {
	enqueue(w.out, w.c, msg, w.roomID, w.logger)
}

// close writes what is still queued and stops the writer.
func (w *connWriter) close() {
	close(w.stop)
	<-w.done
}

// enqueue never blocks. A client too slow to drain its queue is disconnected instead of
// stalling the room loop.
func enqueue(out chan<- []byte, c *websocket.Conn, msg []byte, roomID uuid.UUID, logger *logrus.Logger) {
	select {
	case out <- msg:
	default:
		logger.Warnf("Outbound queue full in room %s, closing connection.", roomID)
		if c != nil {
			go c.Close(SlowConsumerError, "Too many pending messages.")
		}
	}
}
