package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcphub/mcphub/internal/domain/upstream"
	"github.com/mcphub/mcphub/internal/telemetry"
	"github.com/mcphub/mcphub/pkg/rpc"
)

// streamer is the narrow interface Stream needs from *client.Client, kept
// local so stream tests can supply a fake without standing up an
// httptest server, matching clientDoer in dispatcher.go.
type streamer interface {
	Stream(ctx context.Context, env rpc.Envelope) (io.ReadCloser, error)
}

func (h *Hub) streamDispatch(ctx context.Context, s streamer, env rpc.Envelope) (io.ReadCloser, error) {
	return s.Stream(ctx, env)
}

// Stream resolves a qualified tool name, opens a streaming tools/call,
// and returns a channel of normalized chunks plus a cancel function. The
// channel is closed after the terminal chunk, or immediately if cancel is
// invoked first. Calling cancel always closes the upstream body promptly.
func (h *Hub) Stream(ctx context.Context, qualifiedName string, arguments json.RawMessage) (<-chan StreamChunk, func(), error) {
	entry, ok := h.registry.Lookup(qualifiedName)
	if !ok {
		return nil, nil, newError(KindUnknownTool, fmt.Sprintf("no tool registered as %q", qualifiedName), nil)
	}

	state, c, ok := h.stateAndClient(entry.Owner)
	if !ok || state.Conn != upstream.StateConnected || c == nil {
		return nil, nil, newError(KindServerUnavailable, fmt.Sprintf("upstream %q is not connected", entry.Owner), nil)
	}

	params, err := json.Marshal(map[string]any{
		"name":      entry.LocalName,
		"arguments": arguments,
	})
	if err != nil {
		return nil, nil, newError(KindTransportError, "encode call params", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	env := rpc.NewEnvelope(state.NextRequestID(), "tools/call", params)

	spanCtx, span := telemetry.Tracer().Start(streamCtx, "hub.stream",
		trace.WithAttributes(attribute.String("rpc.method", env.Method)))

	body, err := h.streamDispatch(spanCtx, c, env)
	if err != nil {
		span.End()
		cancel()
		h.recordChunk(chunkLabel(ChunkFailure))
		ch := make(chan StreamChunk, 1)
		ch <- failureChunk(KindTransportError, err.Error())
		close(ch)
		return ch, func() {}, nil
	}

	out := make(chan StreamChunk)
	go h.pumpStream(streamCtx, body, out, span)

	return out, cancel, nil
}

// pumpStream frames body as newline-delimited JSON and emits one chunk
// per line, terminating on the first error-shaped line, a read error, or
// body close. It always closes body and out before returning, ending
// span once the stream is fully drained. Every send is selected against
// ctx so an abandoned subscription (cancel called, nobody draining out)
// never blocks the goroutine forever. Once ctx is done, no further
// chunks are emitted, including the terminal chunk that would otherwise
// report the resulting read error, since that error is just the
// caller's own cancellation, not a stream failure worth reporting.
func (h *Hub) pumpStream(ctx context.Context, body io.ReadCloser, out chan<- StreamChunk, span trace.Span) {
	defer span.End()
	defer close(out)
	defer func() { _ = body.Close() }()

	send := func(chunk StreamChunk) bool {
		select {
		case out <- chunk:
			h.recordChunk(chunkLabel(chunk.Kind))
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := rpc.NewLineScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, err := rpc.ParseResponse(line)
		if err != nil {
			if !send(rawChunk(string(line))) {
				return
			}
			continue
		}

		switch resp.Kind {
		case rpc.ShapeError:
			send(failureChunk(KindUpstreamError, resp.ErrorMessage))
			return
		case rpc.ShapeResult:
			if !send(successChunk(resp.Result)) {
				return
			}
		default:
			if !send(rawChunk(string(line))) {
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		send(failureChunk(KindTransportError, err.Error()))
	}
}

// chunkLabel maps a ChunkKind to its metrics label.
func chunkLabel(kind ChunkKind) string {
	switch kind {
	case ChunkSuccess:
		return "success"
	case ChunkFailure:
		return "failure"
	default:
		return "raw"
	}
}
