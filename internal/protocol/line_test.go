// internal/protocol/line_test.go
package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempctl-service/internal/model"
	"tempctl-service/pkg/driver"
)

type chunkProtocol struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (p *chunkProtocol) Open(ctx context.Context) error { return nil }
func (p *chunkProtocol) Close() error                   { return nil }
func (p *chunkProtocol) IsOpen() bool                   { return true }

func (p *chunkProtocol) Write(ctx context.Context, data []byte) error { return nil }

func (p *chunkProtocol) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	chunk := p.chunks[0]
	p.chunks = p.chunks[1:]
	return chunk, nil
}

func (p *chunkProtocol) GetProtocolType() model.ConnectionType { return model.ConnectionTypeSerial }
func (p *chunkProtocol) Ping(ctx context.Context) error        { return nil }
func (p *chunkProtocol) Stats() ProtocolStats                  { return ProtocolStats{} }

func TestReadLineSingleChunk(t *testing.T) {
	p := &chunkProtocol{chunks: [][]byte{[]byte("301.221\r\n")}}

	line, err := ReadLine(context.Background(), p, "\r\n", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "301.221", line)
}

func TestReadLineFragmentedReply(t *testing.T) {
	// Serial transports hand back whatever is buffered; the reply may arrive
	// one byte at a time
	p := &chunkProtocol{chunks: [][]byte{
		[]byte("30"),
		[]byte("1.2"),
		[]byte("21"),
		[]byte("\r"),
		[]byte("\n"),
	}}

	line, err := ReadLine(context.Background(), p, "\r\n", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "301.221", line)
}

func TestReadLineTimeout(t *testing.T) {
	p := &chunkProtocol{}

	_, err := ReadLine(context.Background(), p, "\r\n", 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, driver.IsTimeout(err))

	var timeoutErr *driver.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Window)
}

func TestReadLinePartialWithoutTerminator(t *testing.T) {
	// A bare LF must not terminate a CRLF-framed reply
	p := &chunkProtocol{chunks: [][]byte{[]byte("301.221\n")}}

	_, err := ReadLine(context.Background(), p, "\r\n", 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, driver.IsTimeout(err))
}

func TestReadLineContextCancelled(t *testing.T) {
	p := &chunkProtocol{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadLine(ctx, p, "\r\n", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
