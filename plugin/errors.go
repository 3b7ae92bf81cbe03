package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginAlreadyRegistered is matched by *AlreadyRegisteredError.
	ErrPluginAlreadyRegistered = errors.New("plugin already registered")
	// ErrModelAlreadyRegistered is matched by *ModelAlreadyRegisteredError.
	ErrModelAlreadyRegistered = errors.New("model already registered")
	// ErrPluginNotFound is matched by *NotFoundError. It is recoverable:
	// renderers record it against the item and carry on.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("plugin registry is frozen")
	// ErrInvalidPlugin is matched by *ConfigError.
	ErrInvalidPlugin = errors.New("invalid plugin")
)

// AlreadyRegisteredError reports a plugin name registered twice.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("plugin %q is already registered", e.Name)
}

func (e *AlreadyRegisteredError) Is(target error) bool {
	return target == ErrPluginAlreadyRegistered
}

// ModelAlreadyRegisteredError reports a model claimed by a second plugin.
type ModelAlreadyRegisteredError struct {
	Model    string
	Existing string
	Plugin   string
}

func (e *ModelAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("can't register plugin %q: model %s is already registered by plugin %q", e.Plugin, e.Model, e.Existing)
}

func (e *ModelAlreadyRegisteredError) Is(target error) bool {
	return target == ErrModelAlreadyRegistered
}

// NotFoundError reports a failed lookup. Only one of the fields is set,
// depending on the lookup used.
type NotFoundError struct {
	Name   string
	Model  string
	TypeID int64
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("no plugin found for name %q", e.Name)
	case e.Model != "":
		return fmt.Sprintf("no plugin found for model %s", e.Model)
	default:
		return fmt.Sprintf("no plugin found for content type #%d", e.TypeID)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrPluginNotFound
}

// ConfigError represents a plugin declaration or registry configuration
// problem.
type ConfigError struct {
	Plugin  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Plugin == "" {
		return "plugin config error in " + e.Field + ": " + e.Message
	}
	return "plugin " + e.Plugin + " config error in " + e.Field + ": " + e.Message
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidPlugin
}
