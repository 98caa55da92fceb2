package errors

import "fmt"

// Common error wrapping patterns used throughout the codebase

// WrapWithOperation wraps an error with an operation context
func WrapWithOperation(operation, item string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s %s", operation, item)
	return Wrap(UnknownErrorCode, message, cause)
}

// WrapScanError wraps package loading and source extraction failures
func WrapScanError(pattern string, cause error) *BaseError {
	return Wrap(ScanErrorCode, fmt.Sprintf("failed to scan %s", pattern), cause).
		WithContext("pattern", pattern)
}

// WrapCreationError wraps a failure raised by a service factory
func WrapCreationError(service string, cause error) *BaseError {
	return Wrap(CreationErrorCode, fmt.Sprintf("failed to create service %s", service), cause).
		WithContext("service", service)
}

// WrapRegistrationError wraps a failure raised while binding a descriptor or schema
func WrapRegistrationError(componentType, name string, cause error) *BaseError {
	message := fmt.Sprintf("failed to register %s '%s'", componentType, name)
	return Wrap(RegistrationErrorCode, message, cause).
		WithContext("component_type", componentType).
		WithContext("name", name)
}

// WrapConfigurationError wraps configuration-related errors
func WrapConfigurationError(configType, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s configuration '%s'", operation, configType)
	return Wrap(ConfigurationErrorCode, message, cause).
		WithContext("config_type", configType).
		WithContext("operation", operation)
}
