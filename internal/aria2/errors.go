package aria2

import (
	"errors"
	"fmt"

	"github.com/powerman/rpc-codec/jsonrpc2"
)

// RPCError is a structured error payload returned by the daemon. The daemon
// answered, so the transport is healthy; the message is surfaced verbatim and
// never pattern-matched.
type RPCError struct {
	Method string
	Err    *jsonrpc2.Error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Err.Message)
}

func (e *RPCError) Unwrap() error { return e.Err }

// StartupError means the daemon never became reachable within the spawn wait
// budget.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("daemon did not become reachable: %s", e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// IsTransportError reports whether err means no RPC response was obtained at
// all. Only transport failures drive the spawn/retry decision during startup;
// a daemon-level error proves the daemon is alive.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *jsonrpc2.Error
	return !errors.As(err, &rpcErr)
}
