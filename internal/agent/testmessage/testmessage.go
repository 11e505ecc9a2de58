// Package testmessage implements the send_test_message agent flag: emit one
// synthetic TestMessage-status deployment to the controller and dispatcher,
// then let the caller exit, without touching any running container.
package testmessage

import (
	"context"

	"github.com/hoisterhq/hoister/internal/agent/engine"
	"github.com/hoisterhq/hoister/internal/agent/reporter"
)

// outcomeTestMessage mirrors domain.StatusTestMessage.String() without
// importing the controller's domain package from the engine's result type,
// matching engine.Outcome's plain-string representation of the other
// terminal statuses.
const outcomeTestMessage engine.Outcome = "TestMessage"

// Send submits one synthetic TestMessage deployment through r, so an
// operator can confirm the controller and chat transports are wired up
// before trusting the agent with real deployments.
func Send(ctx context.Context, r *reporter.Reporter, hostName string) {
	r.Submit(ctx, engine.Result{
		ProjectName: "hoister",
		ServiceName: hostName,
		Image:       "n/a",
		Outcome:     outcomeTestMessage,
	})
}
