package sink

import (
	"net"

	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/logger"
)

// UDP sends each log line as one datagram to a collector. Delivery is best
// effort: a line that cannot be sent is dropped and the measurement goes on.
type UDP struct {
	addr string
	conn net.Conn
}

var _ LineSink = (*UDP)(nil)

// NewUDP creates a UDP line sink for addr ("host:port").
func NewUDP(addr string) *UDP {
	return &UDP{addr: addr}
}

func (u *UDP) Open() error {
	conn, err := net.Dial("udp", u.addr)
	if err != nil {
		return errors.Wrap(ErrOpenFailed, err).
			WithMessage("failed to resolve log destination " + u.addr)
	}
	u.conn = conn

	return nil
}

func (u *UDP) Send(line string) error {
	if u.conn == nil {
		return errors.New(ErrOpenFailed)
	}

	if _, err := u.conn.Write([]byte(line)); err != nil {
		logger.Debug().Err(err).Msg("dropped log line")
	}

	return nil
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}

	err := u.conn.Close()
	u.conn = nil
	if err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
