// Package errors defines the Helenium error taxonomy as a flat group of
// sentinels, wrapped with fmt.Errorf("%w: %s", ...) at the call site the
// way tab-fuku's own errors package does.
package errors

import "errors"

// Kind sentinels. Every concrete error below wraps exactly one of these
// so callers can classify with errors.Is(err, errors.ErrProtocol) etc.
var (
	ErrProtocol     = errors.New("protocol error")
	ErrLifecycle    = errors.New("lifecycle error")
	ErrTimeout      = errors.New("timeout error")
	ErrConfig       = errors.New("config error")
	ErrIO           = errors.New("io error")
	ErrConsentDenied = errors.New("consent denied")
)

var (
	ErrUnknownToken     = errors.New("message carries an unknown token, dropped")
	ErrUnknownTarget    = errors.New("target service not registered")
	ErrDowncastFailed   = errors.New("payload downcast failed")
	ErrBusClosed        = errors.New("bus is closed")
	ErrDuplicateName    = errors.New("endpoint name already registered")
	ErrUnknownProxy     = errors.New("proxy target not registered")
	ErrNoStatsSink      = errors.New("no stats sink installed")
	ErrUnknownUser      = errors.New("no endpoint registered under that name")

	ErrEndpointMinimal = errors.New("a minimally-created endpoint has no sub-endpoint")
	ErrAlreadyExtracted = errors.New("receive queues already extracted")

	ErrUnknownDependency = errors.New("service declares an unregistered dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
	ErrMissingHandle     = errors.New("service has no running handle")
	ErrUnknownService    = errors.New("unknown service name")
	ErrNotHealthy        = errors.New("service did not become healthy")

	ErrNoProvider        = errors.New("no provider for resource")
	ErrProviderMismatch  = errors.New("resource already published by another service")
	ErrForbiddenUnpublish = errors.New("only the hub may unpublish a resource")

	ErrInvalidCron     = errors.New("invalid cron expression")
	ErrPastTrigger     = errors.New("trigger time is in the past")
	ErrNoNextTrigger   = errors.New("trigger can never fire again")

	ErrLoopLimitReached = errors.New("reached max working loop limit")
	ErrNoSuitableTool   = errors.New("no tool suffices for this task")
	ErrUnknownTask      = errors.New("no task with that id")
	ErrUnknownTool      = errors.New("no tool bound under that name")

	ErrMissingConfigKey = errors.New("missing required config key")
)

var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
