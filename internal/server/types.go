// Package server relays pianobar events over a Unix socket and exposes an
// optional HTTP API for inspecting what arrived.
package server

import "hope/internal/pianobar"

// StatusResponse is the response for the health endpoint.
type StatusResponse struct {
	Status   string `json:"status"`
	Received uint64 `json:"received"`
}

// EventCmdsResponse lists the eventcmds pianobar may send.
type EventCmdsResponse struct {
	EventCmds []pianobar.EventCmd `json:"eventcmds"`
}

// LatestResponse is the last event seen per eventcmd.
type LatestResponse struct {
	Events map[pianobar.EventCmd]pianobar.Event `json:"events"`
}

// SubmitResponse is returned when an event is accepted over HTTP.
type SubmitResponse struct {
	Status   string            `json:"status"`
	EventCmd pianobar.EventCmd `json:"eventcmd"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
