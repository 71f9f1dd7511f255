package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRound      = errors.New("unknown round")
	ErrMalformedResponse = errors.New("malformed leaderboard response")
	ErrInvalidMetric     = errors.New("invalid metric")
	ErrInvalidDirection  = errors.New("invalid direction")
)

// UnknownRoundError means no tournament lists the round.
type UnknownRoundError struct {
	Round int
}

func (e *UnknownRoundError) Error() string {
	return fmt.Sprintf("no such round: %d", e.Round)
}

func (e *UnknownRoundError) Is(target error) bool { return target == ErrUnknownRound }

// MalformedResponseError means a required field was missing from a leaderboard payload.
type MalformedResponseError struct {
	Round      int
	Tournament int
	Field      string
	Username   string
}

func (e *MalformedResponseError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("round %d tournament %d: user %q: missing or invalid %s",
			e.Round, e.Tournament, e.Username, e.Field)
	}
	return fmt.Sprintf("round %d tournament %d: missing or invalid %s", e.Round, e.Tournament, e.Field)
}

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// InvalidMetricError means the caller asked for a score column that does not exist.
type InvalidMetricError struct {
	Metric string
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("unsupported metric %q", e.Metric)
}

func (e *InvalidMetricError) Is(target error) bool { return target == ErrInvalidMetric }

// InvalidDirectionError means a dominance direction other than "more" or "less".
type InvalidDirectionError struct {
	Direction string
}

func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("direction must be %q or %q, got %q", DirectionMore, DirectionLess, e.Direction)
}

func (e *InvalidDirectionError) Is(target error) bool { return target == ErrInvalidDirection }
