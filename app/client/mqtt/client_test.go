package mqtt

import (
	"context"
	"drivechat/app/config"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(port int) config.MQTT {
	return config.MQTT{
		Broker:         "127.0.0.1",
		Port:           port,
		Topic:          "robot/control",
		ClientID:       "GeminiClient",
		KeepAlive:      60 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// closedPort returns a local port with nothing listening on it
func closedPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return port
}

func TestPublishConnectionRefused(t *testing.T) {
	client := New(testConfig(closedPort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := client.Publish(ctx, "robot/control", "right=1,left=1,speed=7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to broker")
}

func TestPublishExpiredContext(t *testing.T) {
	client := New(testConfig(closedPort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Publish(ctx, "robot/control", "right=0,left=0,speed=7")
	require.Error(t, err)
}

// TestCancelledConnectDoesNotLeakConnection lets the broker acknowledge the
// handshake only after Publish gave up, the client must still hang up
func TestCancelledConnectDoesNotLeakConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	cfg := testConfig(listener.Addr().(*net.TCPAddr).Port)
	cfg.PublishTimeout = 10 * time.Second
	client := New(cfg)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}

		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		accepted <- conn
	}()

	ctx, cancel := context.WithCancel(context.Background())
	published := make(chan error, 1)
	go func() {
		published <- client.Publish(ctx, "robot/control", "right=1,left=1,speed=7")
	}()

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}
	defer conn.Close()

	cancel()
	select {
	case err = <-published:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Publish did not return after cancel")
	}

	// CONNACK, connection accepted
	_, err = conn.Write([]byte{0x20, 0x02, 0x00, 0x00})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 256)
	for {
		_, err = conn.Read(buf)
		if err != nil {
			break
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("client kept the connection open after a cancelled connect")
	}
}

func TestClientIDKeepsPrefix(t *testing.T) {
	client := New(testConfig(1883))

	first := client.clientID()
	second := client.clientID()

	assert.True(t, strings.HasPrefix(first, "GeminiClient-"))
	assert.NotEqual(t, first, second)
	assert.Equal(t, "tcp://127.0.0.1:1883", client.BrokerURL())
}
