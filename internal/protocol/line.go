// internal/protocol/line.go
package protocol

import (
	"bytes"
	"context"
	"strings"
	"time"

	"tempctl-service/pkg/driver"
)

const readChunkSize = 64

// ReadLine assembles one reply line from the transport. Controller replies
// are terminated by terminator (CRLF for every supported device); the
// transport's Read returns whatever bytes are buffered, so this polls until
// the terminator shows up or the window elapses. The returned string has the
// terminator stripped.
func ReadLine(ctx context.Context, p DeviceProtocol, terminator string, window time.Duration) (string, error) {
	deadline := time.Now().Add(window)
	var buf bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		chunk, err := p.Read(ctx, readChunkSize)
		if err != nil {
			return "", err
		}
		buf.Write(chunk)

		if bytes.HasSuffix(buf.Bytes(), []byte(terminator)) {
			return strings.TrimSuffix(buf.String(), terminator), nil
		}

		if time.Now().After(deadline) {
			return "", &driver.TimeoutError{Window: window}
		}
	}
}
