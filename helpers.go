package parley

import (
	"math"
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// listen binds the first free port in [basePort, basePort+attempts).
func listen(host string, basePort, attempts uint16) (*net.TCPListener, uint16, error) {
	lastErr := errors.New("no port tried")
	for i := range uint32(attempts) {
		port := uint32(basePort) + i
		if port > math.MaxUint16 {
			break
		}

		addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)))
		if err != nil {
			return nil, 0, errors.WithStack(err)
		}
		ls, err := net.ListenTCP("tcp", addr)
		if err == nil {
			return ls, uint16(port), nil
		}
		lastErr = err
	}
	return nil, 0, errors.Wrapf(ErrPortsExhausted, "starting at %d, %d attempts, last error: %s",
		basePort, attempts, lastErr)
}
