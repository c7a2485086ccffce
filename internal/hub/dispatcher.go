package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcphub/mcphub/internal/domain/upstream"
	"github.com/mcphub/mcphub/internal/telemetry"
	"github.com/mcphub/mcphub/pkg/rpc"
)

// Call resolves a qualified tool name to its owning upstream, dispatches
// a unary tools/call, and returns a normalized CallOutcome. The dispatcher
// does not interpret the contents of a successful result; that is the
// caller's problem.
func (h *Hub) Call(ctx context.Context, qualifiedName string, arguments json.RawMessage) CallOutcome {
	entry, ok := h.registry.Lookup(qualifiedName)
	if !ok {
		return Failure(KindUnknownTool, fmt.Sprintf("no tool registered as %q", qualifiedName))
	}

	state, c, ok := h.stateAndClient(entry.Owner)
	if !ok || state.Conn != upstream.StateConnected || c == nil {
		return Failure(KindServerUnavailable, fmt.Sprintf("upstream %q is not connected", entry.Owner))
	}

	params, err := json.Marshal(map[string]any{
		"name":      entry.LocalName,
		"arguments": arguments,
	})
	if err != nil {
		return Failure(KindTransportError, fmt.Sprintf("encode call params: %v", err))
	}

	start := time.Now()
	env := rpc.NewEnvelope(state.NextRequestID(), "tools/call", params)
	outcome := h.dispatch(ctx, c, env)
	h.recordDispatch(entry.Owner, outcome.Kind, time.Since(start))
	return outcome
}

// Approve re-submits a previously Pending call via tools/approve.
// Response handling is identical to Call: it may return Success, Failure,
// or, if the upstream violates the protocol, a second Pending, which the
// hub returns faithfully rather than masking.
func (h *Hub) Approve(ctx context.Context, qualifiedName string, arguments json.RawMessage, approvalID string) CallOutcome {
	entry, ok := h.registry.Lookup(qualifiedName)
	if !ok {
		return Failure(KindUnknownTool, fmt.Sprintf("no tool registered as %q", qualifiedName))
	}

	state, c, ok := h.stateAndClient(entry.Owner)
	if !ok || state.Conn != upstream.StateConnected || c == nil {
		return Failure(KindServerUnavailable, fmt.Sprintf("upstream %q is not connected", entry.Owner))
	}

	params, err := json.Marshal(map[string]any{
		"name":        entry.LocalName,
		"arguments":   arguments,
		"approval_id": approvalID,
	})
	if err != nil {
		return Failure(KindTransportError, fmt.Sprintf("encode approve params: %v", err))
	}

	env := rpc.NewEnvelope(state.NextRequestID(), "tools/approve", params)
	return h.dispatch(ctx, c, env)
}

// dispatch sends one envelope and translates the response shape into a
// CallOutcome.
func (h *Hub) dispatch(ctx context.Context, c clientDoer, env rpc.Envelope) CallOutcome {
	ctx, span := telemetry.Tracer().Start(ctx, "hub.dispatch",
		trace.WithAttributes(attribute.String("rpc.method", env.Method)))
	defer span.End()

	resp, err := c.Do(ctx, env)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Failure(KindTransportError, err.Error())
	}

	switch resp.Kind {
	case rpc.ShapeError:
		span.SetStatus(codes.Error, resp.ErrorMessage)
		return Failure(KindUpstreamError, resp.ErrorMessage)
	case rpc.ShapeResult:
		if resp.Pending {
			span.SetAttributes(attribute.Bool("rpc.pending", true))
			return Pending(resp.Result)
		}
		return Success(resp.Result)
	default:
		// Bare list or bare value: treated as a successful raw result.
		return Success(resp.Raw)
	}
}

// clientDoer is the narrow interface dispatch needs from *client.Client,
// kept local so dispatcher tests can supply a fake without standing up
// an httptest server.
type clientDoer interface {
	Do(ctx context.Context, env rpc.Envelope) (rpc.Response, error)
}

func (h *Hub) recordDispatch(owner string, kind OutcomeKind, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	var label string
	switch kind {
	case OutcomeSuccess:
		label = "success"
	case OutcomePending:
		label = "pending"
	default:
		label = "failure"
	}
	h.metrics.DispatchTotal.WithLabelValues(label).Inc()
	h.metrics.DispatchDuration.WithLabelValues(owner).Observe(elapsed.Seconds())
}
