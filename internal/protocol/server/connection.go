package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gt06gateway/internal/core/model"
)

// connection is one device socket. The read buffer and the login state belong
// to the goroutine serving it; deviceID is written under the server mutex.
type connection struct {
	id          string
	conn        net.Conn
	remote      string
	connectedAt time.Time

	// unix nanoseconds of the last inbound frame
	lastActivity atomic.Int64
	deviceID     string

	writeMutex sync.Mutex
	closeOnce  sync.Once
}

func newConnection(id string, conn net.Conn, now time.Time) *connection {
	c := &connection{
		id:          id,
		conn:        conn,
		remote:      conn.RemoteAddr().String(),
		connectedAt: now,
	}
	c.touch(now)
	return c
}

func (c *connection) touch(now time.Time) {
	c.lastActivity.Store(now.UnixNano())
}

func (c *connection) idleSince() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// write sends one frame. Writes from the reader goroutine and the command path
// are serialized so frames never interleave on the wire.
func (c *connection) write(data []byte, timeout time.Duration) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(data)
	return err
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *connection) session(deviceID string) model.DeviceSession {
	return model.DeviceSession{
		DeviceID:     deviceID,
		ConnectionID: c.id,
		RemoteAddr:   c.remote,
		ConnectedAt:  c.connectedAt,
		LastActivity: c.idleSince().UTC(),
	}
}
