package port

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/nobletooth/cmdcache/pkg/cache"
	"github.com/nobletooth/cmdcache/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddress returns a local address nobody is listening on.
func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestRunRedisServer(t *testing.T) {
	addr := freeAddress(t)
	utils.SetTestFlag(t, "address", addr)
	associations, err := cache.NewExpiring(context.Background(), 10)
	require.NoError(t, err)
	t.Cleanup(associations.Close)

	ctx, cancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() { serverErr <- RunRedisServer(ctx, Backend{Associations: associations}) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)
	send := func(request string) string {
		t.Helper()
		_, err := conn.Write([]byte(request))
		require.NoError(t, err)
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return line
	}

	assert.Equal(t, "+PONG\r\n", send("*1\r\n$4\r\nping\r\n"))
	assert.Equal(t, "+OK\r\n", send("*3\r\n$6\r\nRECORD\r\n$3\r\n100\r\n$1\r\n7\r\n"))
	assert.Equal(t, ":1\r\n", send("*1\r\n$5\r\nCOUNT\r\n"))
	assert.Equal(t, "$-1\r\n", send("*2\r\n$6\r\nLOOKUP\r\n$3\r\n999\r\n"))
	assert.True(t, associations.Contains(100))

	cancel()
	select {
	case err := <-serverErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Server didn't stop after its context was cancelled")
	}
}

func TestRunRedisServer_RequiresAddress(t *testing.T) {
	utils.SetTestFlag(t, "address", "")
	assert.Error(t, RunRedisServer(context.Background(), Backend{}))
}
