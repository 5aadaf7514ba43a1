package project

import (
	stderrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes raised by the configuration lifecycle.
const (
	ErrCodeConfigNotLoaded     = "BAM_1001"
	ErrCodeConfigNotFound      = "BAM_1002"
	ErrCodeMissingScript       = "BAM_1003"
	ErrCodeMethodNotFound      = "BAM_1004"
	ErrCodeConfigLoadFailed    = "BAM_1005"
	ErrCodeIncompatibleVersion = "BAM_1006"
	ErrCodeInvalidHook         = "BAM_1007"
)

// NewConfigNotLoadedError reports an accessor used before Load succeeded.
func NewConfigNotLoadedError() *errors.Error {
	return errors.New(ErrCodeConfigNotLoaded, "Configuration not loaded").
		WithUserMessage("The bam configuration must be loaded before it is used").
		WithSeverity("error")
}

// NewConfigNotFoundError reports a configuration path that is missing or not a regular file.
func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, fmt.Sprintf("BAM configuration %s not found", path)).
		WithUserMessage("No bam configuration file was found").
		WithContext("path", path).
		WithSeverity("error")
}

// NewMissingScriptError reports a required lifecycle method the configuration does not declare.
func NewMissingScriptError(method string) *errors.Error {
	return errors.New(ErrCodeMissingScript, fmt.Sprintf("No %s script", method)).
		WithUserMessage(fmt.Sprintf("The configuration does not declare a %s script", method)).
		WithContext("method", method).
		WithSeverity("error")
}

// NewMethodNotFoundError reports a Callable invoked without a prior Exists check.
func NewMethodNotFoundError(method string) *errors.Error {
	return errors.New(ErrCodeMethodNotFound, fmt.Sprintf("method %s does not exist", method)).
		WithContext("method", method).
		WithSeverity("error")
}

// NewConfigLoadError wraps a loader failure for the given path.
func NewConfigLoadError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigLoadFailed, fmt.Sprintf("load BAM configuration %s", path)).
		WithUserMessage("The bam configuration could not be evaluated").
		WithContext("path", path).
		WithSeverity("error")
}

// NewIncompatibleVersionError reports a configuration written for a newer bam.
func NewIncompatibleVersionError(required, running string) *errors.Error {
	return errors.New(ErrCodeIncompatibleVersion, fmt.Sprintf("the project needs a higher version of bam: %s (running %s)", required, running)).
		WithUserMessage("Upgrade bam to use this project").
		WithContext("required", required).
		WithContext("running", running).
		WithSeverity("error")
}

// NewInvalidHookError reports a hook declared with an unusable signature.
func NewInvalidHookError(name, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidHook, fmt.Sprintf("hook %s: %s", name, reason)).
		WithContext("hook", name).
		WithSeverity("error")
}

// HasCode reports whether err, or anything it wraps, is a coded error with the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		var coded *errors.Error
		if !stderrors.As(err, &coded) {
			return false
		}
		if string(coded.Code) == code {
			return true
		}
		err = coded.Cause
	}
	return false
}
