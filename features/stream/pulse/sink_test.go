package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	streamopts "goa.design/pulse/streaming/options"

	clientspulse "github.com/datapilot-ai/agentcore/features/stream/pulse/clients/pulse"
	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
)

var fixedTime = time.Unix(1700000000, 0)

func TestSendPublishesEnvelope(t *testing.T) {
	str := &fakeStream{}
	cli := &fakeClient{stream: str}

	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)

	ev := stream.ContentEvent{
		Base: stream.NewBase(stream.EventContent, "run-123", "sess-123", "", 1, fixedTime),
		Data: "hello",
	}
	require.NoError(t, sink.Send(context.Background(), ev))

	require.Equal(t, "session/sess-123", cli.lastStreamName)
	var env Envelope
	require.NoError(t, json.Unmarshal(str.addPayload, &env))
	require.Equal(t, "run-123", env.RunID)
	require.Equal(t, "content", env.Type)
	require.Equal(t, "hello", env.Payload)
}

func TestCustomStreamID(t *testing.T) {
	str := &fakeStream{}
	cli := &fakeClient{stream: str}

	sink, err := NewSink(Options{
		Client: cli,
		StreamID: func(e stream.Event) (string, error) {
			return "custom/" + e.RunID(), nil
		},
	})
	require.NoError(t, err)

	ev := stream.ContentEvent{Base: stream.NewBase(stream.EventContent, "run-1", "sess-1", "", 1, fixedTime)}
	require.NoError(t, sink.Send(context.Background(), ev))
	require.Equal(t, "custom/run-1", cli.lastStreamName)
}

func TestSendRequiresSessionID(t *testing.T) {
	sink, err := NewSink(Options{Client: &fakeClient{stream: &fakeStream{}}})
	require.NoError(t, err)
	ev := stream.StreamCompleteEvent{Base: stream.NewBase(stream.EventStreamComplete, "run-1", "", "", 1, fixedTime)}
	err = sink.Send(context.Background(), ev)
	require.EqualError(t, err, "stream event missing session id")
}

func TestStreamCreationError(t *testing.T) {
	cli := &fakeClient{streamErr: errors.New("boom")}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	ev := stream.ContentEvent{Base: stream.NewBase(stream.EventContent, "run-1", "sess-1", "", 1, fixedTime)}
	err = sink.Send(context.Background(), ev)
	require.EqualError(t, err, "boom")
}

func TestAddError(t *testing.T) {
	str := &fakeStream{addErr: errors.New("add-failed")}
	cli := &fakeClient{stream: str}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	ev := stream.ContentEvent{Base: stream.NewBase(stream.EventContent, "run-1", "sess-1", "", 1, fixedTime)}
	err = sink.Send(context.Background(), ev)
	require.EqualError(t, err, "add-failed")
}

func TestCloseDelegates(t *testing.T) {
	cli := &fakeClient{stream: &fakeStream{}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	require.Equal(t, 1, cli.closeCount)
}

type fakeClient struct {
	stream         clientspulse.Stream
	streamErr      error
	lastStreamName string
	closeCount     int
}

func (f *fakeClient) Stream(name string, _ ...streamopts.Stream) (clientspulse.Stream, error) {
	f.lastStreamName = name
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

func (f *fakeClient) Close(ctx context.Context) error {
	f.closeCount++
	return nil
}

type fakeStream struct {
	addPayload []byte
	addErr     error
	sink       clientspulse.Sink
	sinkErr    error
	lastSink   string
}

func (f *fakeStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.addPayload = payload
	return "1-0", nil
}

func (f *fakeStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error) {
	f.lastSink = name
	if f.sinkErr != nil {
		return nil, f.sinkErr
	}
	return f.sink, nil
}

func (f *fakeStream) Destroy(ctx context.Context) error { return nil }
