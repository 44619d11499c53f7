// Package errors defines the named errors raised by the plugin itself.
// Errors coming out of the bundler engine are never wrapped in these.
package errors

import (
	"errors"
	"fmt"
)

// PluginName identifies errors raised by this plugin.
const PluginName = "hardhat-pack"

// PluginError is an error attributed to a plugin, similar to the host's own
// plugin errors.
type PluginError struct {
	Plugin  string
	Message string
	Cause   error
}

func New(message string) *PluginError {
	return &PluginError{Plugin: PluginName, Message: message}
}

func Wrap(cause error, message string) *PluginError {
	return &PluginError{Plugin: PluginName, Message: message, Cause: cause}
}

func (e *PluginError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Plugin, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PluginError) Unwrap() error {
	return e.Cause
}

// Is matches plugin errors with the same plugin and message.
func (e *PluginError) Is(target error) bool {
	var t *PluginError
	if errors.As(target, &t) {
		return e.Plugin == t.Plugin && e.Message == t.Message
	}
	return false
}

var (
	// ErrServerNotAvailable is returned when there is no server to wait on.
	ErrServerNotAvailable = New("Server not available")

	// ErrUnexpectedResult is returned when a task produced something other
	// than what its caller needs.
	ErrUnexpectedResult = New("Unexpected task result")
)
