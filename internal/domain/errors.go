package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCatalog is returned when the catalog source yields anything but a code->name mapping.
	ErrMalformedCatalog = errors.New("malformed country catalog")
	// ErrInsufficientPool is returned when the sampler cannot supply enough codes for a round.
	ErrInsufficientPool = errors.New("not enough countries available for a round")
	// ErrSamplerInitialized is returned when the sampling pool is seeded twice.
	ErrSamplerInitialized = errors.New("sampler already initialized")
	// ErrSessionNotFound is returned when a quiz session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNoActiveRound is returned when an answer arrives before any round was generated.
	ErrNoActiveRound = errors.New("no active round")
	// ErrInvalidSlot indicates an answer slot index outside the board.
	ErrInvalidSlot = errors.New("invalid answer slot")
	// ErrSlotEliminated indicates the slot was already answered incorrectly.
	ErrSlotEliminated = errors.New("answer slot already eliminated")
	// ErrUnknownMode indicates a round mode other than country or flag.
	ErrUnknownMode = errors.New("unknown round mode")
)

// ImageFetchError reports a flag image the image source refused to serve.
type ImageFetchError struct {
	Code   string
	Status int
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("fetch flag image for %s: status %d", e.Code, e.Status)
}
