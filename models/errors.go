package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below
var (
	ErrNoData           = errors.New("no data")
	ErrMissingField     = errors.New("missing field")
	ErrInsufficientData = errors.New("insufficient data")
	ErrNotFitted        = errors.New("forecaster not fitted")
)

// NoDataError means no usable series could be produced for a ticker
type NoDataError struct {
	Ticker string
	Reason string
	Err    error
}

func (e *NoDataError) Error() string {
	msg := fmt.Sprintf("No data for %q", e.Ticker)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NoDataError) Unwrap() error { return e.Err }

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// MissingFieldError means normalization could not produce a required column
type MissingFieldError struct {
	Field  string
	Detail string
}

func (e *MissingFieldError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("missing field %q: %s", e.Field, e.Detail)
	}
	return fmt.Sprintf("missing field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InsufficientDataError means a computation needs more points than given
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("need at least %d price points, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// NotFittedError is returned by a forecaster asked to predict before fitting
type NotFittedError struct {
	Backend string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s forecaster: call Fit before Predict", e.Backend)
}

func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }
