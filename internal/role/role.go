// Package role defines the common contract the terminal roles (asker,
// brainer) implement so cmd/brainer can wire and run them the same way.
// The memory role does not implement it: cmd/brainer wires its ingresses
// and Coordinator directly.
package role

import "context"

// Agent is a long-running process role. Start blocks until ctx is canceled
// or the role exits on its own (e.g. the asker's stdin reaches EOF). The
// connections an Agent uses are opened and closed by its caller.
type Agent interface {
	Start(ctx context.Context) error
}
