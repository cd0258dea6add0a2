package ping

import "errors"

var (
	// ErrInvalidArgument reports a bad count, timeout or packet size. It is
	// returned synchronously, before any socket work.
	ErrInvalidArgument = errors.New("ping: invalid argument")

	// ErrUnknownDestination reports that name resolution failed, timed out
	// or was denied.
	ErrUnknownDestination = errors.New("ping: unknown destination")

	// ErrTransportSetup reports a failure creating, configuring or binding
	// the transport. It is fatal to the stream.
	ErrTransportSetup = errors.New("ping: transport setup failed")
)
