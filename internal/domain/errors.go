package domain

import "errors"

var (
	// ErrNotConnected means no tool session is established yet.
	ErrNotConnected = errors.New("tool session not connected")

	// ErrCallTimeout means a tool call did not complete within its deadline.
	ErrCallTimeout = errors.New("tool call timed out")

	// ErrSelectionIncomplete means the active selection cannot serve a
	// query yet (multi-table mode with fewer than two tables).
	ErrSelectionIncomplete = errors.New("select at least 2 tables for a multi-table query")

	// ErrEmptyQuery means the user submitted a blank question.
	ErrEmptyQuery = errors.New("empty query")

	// ErrIngestRunning means an ingestion run is already in flight.
	ErrIngestRunning = errors.New("ingestion already in progress")
)
