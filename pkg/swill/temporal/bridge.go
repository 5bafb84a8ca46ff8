// Package temporal lets a Swill handler delegate its work to a Temporal
// workflow execution, instead of running inline. Grounded on
// pkg/temporal/worker.go's client.Dial/worker wiring, generalized from a
// standalone worker process to a library a swill.UnaryUnary/StreamUnary
// handler can call into.
package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Bridge wraps a Temporal client connection, reused across every handler
// that delegates to Temporal.
type Bridge struct {
	Client    client.Client
	TaskQueue string
}

// Dial connects to a Temporal server, mirroring pkg/temporal/worker.go's
// Run().
func Dial(hostPort, namespace, taskQueue string) (*Bridge, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial Temporal: %w", err)
	}
	return &Bridge{Client: c, TaskQueue: taskQueue}, nil
}

// Close releases the underlying Temporal client connection.
func (b *Bridge) Close() {
	b.Client.Close()
}

// RunWorkflow starts workflowType with the given argument, blocks for its
// result, and decodes it into result. Intended to be called from inside a
// swill.UnaryUnary or swill.StreamUnary handler's function - the call's
// context.Context is passed through unchanged, so the wait for the result
// ends when that context is cancelled (on disconnect, or once the handler
// returns). A CANCEL frame does not cancel that context: it only marks
// the call as cancelled (see Call.Cancelled).
func RunWorkflow(ctx context.Context, b *Bridge, workflowType string, arg any, result any) error {
	opts := client.StartWorkflowOptions{TaskQueue: b.TaskQueue}

	run, err := b.Client.ExecuteWorkflow(ctx, opts, workflowType, arg)
	if err != nil {
		return fmt.Errorf("failed to start Temporal workflow %q: %w", workflowType, err)
	}

	if err := run.Get(ctx, result); err != nil {
		return fmt.Errorf("Temporal workflow %q failed: %w", workflowType, err)
	}

	return nil
}

// SignalWorkflow delivers a signal to a running workflow, used by a
// swill.StreamUnary handler whose inbound stream items should be relayed
// as workflow signals rather than activity arguments.
func SignalWorkflow(ctx context.Context, b *Bridge, workflowID, signalName string, arg any) error {
	if err := b.Client.SignalWorkflow(ctx, workflowID, "", signalName, arg); err != nil {
		return fmt.Errorf("failed to signal Temporal workflow %q: %w", workflowID, err)
	}
	return nil
}
