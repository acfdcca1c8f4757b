// Package rediserror defines the error taxonomy shared by sentinelpool packages.
//
// All errors produced by this module are *errorx.Error values belonging to the
// Errors namespace. Use traits to decide how to react:
//
//   - ErrTraitFatal: configuration is wrong, construction must be aborted;
//   - ErrTraitConnectivity: transient network problem, retry later;
//   - anything else: single operation failed, request is not worth retrying.
package rediserror

import (
	"github.com/joomcode/errorx"
)

var (
	// Errors is a root namespace of all sentinelpool errors.
	Errors = errorx.NewNamespace("sentinelpool")

	// ErrTraitFatal marks errors which must abort construction.
	ErrTraitFatal = errorx.RegisterTrait("fatal")
	// ErrTraitConnectivity marks errors caused by network or server availability.
	ErrTraitConnectivity = errorx.RegisterTrait("connectivity")
)

var (
	// ErrConfiguration - invalid or unreachable sentinel/master configuration.
	ErrConfiguration = Errors.NewType("configuration", ErrTraitFatal)
	// ErrNoSentinels - no sentinel endpoints configured.
	ErrNoSentinels = ErrConfiguration.NewSubtype("no_sentinels")
	// ErrNoGroups - no master groups configured.
	ErrNoGroups = ErrConfiguration.NewSubtype("no_groups")
	// ErrUnresolved - master group could not be resolved by any sentinel.
	ErrUnresolved = ErrConfiguration.NewSubtype("unresolved")
	// ErrContextIsNil - nil context passed to constructor.
	ErrContextIsNil = ErrConfiguration.NewSubtype("context_is_nil")
)

var (
	// ErrConnectivity - transient failure talking to redis or sentinel.
	ErrConnectivity = Errors.NewType("connectivity", ErrTraitConnectivity, errorx.Temporary())
	// ErrDial - connection could not be established.
	ErrDial = ErrConnectivity.NewSubtype("could_not_connect")
	// ErrIO - connection broken while request were in flight.
	ErrIO = ErrConnectivity.NewSubtype("io")
	// ErrPing - validation ping failed.
	ErrPing = ErrConnectivity.NewSubtype("ping")
	// ErrPoolTimeout - no handle became available within wait timeout.
	ErrPoolTimeout = ErrConnectivity.NewSubtype("pool_timeout", errorx.Timeout())
	// ErrPoolClosed - pool were closed.
	ErrPoolClosed = ErrConnectivity.NewSubtype("pool_closed")
)

var (
	// ErrProtocol - reply from redis or sentinel has unexpected shape.
	ErrProtocol = Errors.NewType("protocol")
	// ErrResult - redis answered with an error reply.
	ErrResult = ErrProtocol.NewSubtype("result")
	// ErrMalformedToken - lock value is not a lock token.
	ErrMalformedToken = ErrProtocol.NewSubtype("malformed_token")
	// ErrMalformedMessage - failover notification could not be parsed.
	ErrMalformedMessage = ErrProtocol.NewSubtype("malformed_message")
	// ErrMalformedAddress - sentinel returned unusable master address.
	ErrMalformedAddress = ErrProtocol.NewSubtype("malformed_address")
)

var (
	// ErrContext - context were cancelled or its deadline passed.
	ErrContext = Errors.NewType("context")
	// ErrCancelled - operation aborted because context were closed.
	ErrCancelled = ErrContext.NewSubtype("cancelled")
)

var (
	// EKAddress - address of redis or sentinel.
	EKAddress = errorx.RegisterPrintableProperty("address")
	// EKGroup - logical master group name.
	EKGroup = errorx.RegisterPrintableProperty("group")
	// EKSentinel - sentinel endpoint.
	EKSentinel = errorx.RegisterPrintableProperty("sentinel")
	// EKKey - redis key.
	EKKey = errorx.RegisterPrintableProperty("key")
	// EKOperation - name of facade operation.
	EKOperation = errorx.RegisterPrintableProperty("operation")
	// EKResponse - unexpected response.
	EKResponse = errorx.RegisterProperty("response")
)

// IsFatal reports whether err must abort construction.
func IsFatal(err error) bool {
	return errorx.HasTrait(err, ErrTraitFatal)
}

// IsConnectivity reports whether err is a transient network failure.
func IsConnectivity(err error) bool {
	return errorx.HasTrait(err, ErrTraitConnectivity)
}

// WithNewProperty sets property only if it is not set yet.
func WithNewProperty(err *errorx.Error, p errorx.Property, v interface{}) *errorx.Error {
	if _, ok := err.Property(p); ok {
		return err
	}
	return err.WithProperty(p, v)
}
