package actuation

import (
	"context"
	"drivechat/app/client/mqtt"
	"drivechat/app/config"
	"drivechat/app/service/command"
	"drivechat/app/service/journal"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
	err      error
	panicked bool
	deadline bool
}

func (p *fakePublisher) Publish(ctx context.Context, topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.panicked {
		panic("broker client exploded")
	}

	_, p.deadline = ctx.Deadline()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)

	return p.err
}

type fakeRecorder struct {
	entries []journal.Entry
}

func (r *fakeRecorder) Add(entry journal.Entry) {
	r.entries = append(r.entries, entry)
}

func TestDispatchSuccess(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := &fakeRecorder{}
	svc := NewService(publisher, recorder, "robot/control", time.Second)

	result := svc.Dispatch(context.Background(), "session:s1", command.Args{Right: "1", Left: "-1", Speed: "42"})

	assert.Equal(t, Result{Status: StatusOK, Detail: "sent"}, result)
	assert.True(t, result.OK())
	assert.Equal(t, []string{"robot/control"}, publisher.topics)
	assert.Equal(t, []string{"right=1,left=-1,speed=42"}, publisher.payloads)
	assert.True(t, publisher.deadline)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, "session:s1", recorder.entries[0].Origin)
	assert.Equal(t, StatusOK, recorder.entries[0].Status)
}

func TestDispatchFailureIsData(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("connection refused")}
	recorder := &fakeRecorder{}
	svc := NewService(publisher, recorder, "robot/control", time.Second)

	result := svc.Dispatch(context.Background(), "cli", command.Args{Right: "0", Left: "0", Speed: "7"})

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Detail, "connection refused")
	assert.Len(t, publisher.payloads, 1)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, StatusError, recorder.entries[0].Status)
}

func TestDispatchRecoversPanic(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := NewService(&fakePublisher{panicked: true}, recorder, "robot/control", time.Second)

	var result Result
	require.NotPanics(t, func() {
		result = svc.Dispatch(context.Background(), "mcp", command.Args{Right: "1", Left: "1", Speed: "7"})
	})

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Detail, "broker client exploded")
	require.Len(t, recorder.entries, 1)
}

func TestDispatchWithoutRecorder(t *testing.T) {
	svc := NewService(&fakePublisher{}, nil, "robot/control", time.Second)

	result := svc.Dispatch(context.Background(), "cli", command.Args{Right: "1", Left: "1", Speed: "7"})
	assert.True(t, result.OK())
}

func TestDispatchUnreachableBroker(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	client := mqtt.New(config.MQTT{
		Broker:         "127.0.0.1",
		Port:           port,
		Topic:          "robot/control",
		ClientID:       "GeminiClient",
		KeepAlive:      60 * time.Second,
		PublishTimeout: 2 * time.Second,
	})
	svc := NewService(client, nil, "robot/control", 2*time.Second)

	result := svc.Dispatch(context.Background(), "cli", command.Args{Right: "1", Left: "1", Speed: "7"})

	assert.Equal(t, StatusError, result.Status)
	assert.NotEmpty(t, result.Detail)
}
