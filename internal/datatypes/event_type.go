// Package datatypes defines shared types for business lifecycle events.
package datatypes

import (
	"errors"
	"fmt"
)

// ErrInvalidEventType is returned when an event type or operation string is not recognized.
var ErrInvalidEventType = errors.New("invalid event type")

// EventType is a business lifecycle event.
// Use String() to get the wire representation.
type EventType uint16

// Event type constants; string forms are given in eventTypeMap.
const (
	BusinessCreated EventType = iota
	BusinessUpdated
	BusinessVerified
	BusinessDeleted
)

// eventTypeMap maps wire names to EventType. Single source of truth for valid event types.
var eventTypeMap = map[string]EventType{
	"business.created":  BusinessCreated,
	"business.updated":  BusinessUpdated,
	"business.verified": BusinessVerified,
	"business.deleted":  BusinessDeleted,
}

// operationMap maps bare operation names (as sent by the platform bus) to EventType.
var operationMap = map[string]EventType{
	"created":  BusinessCreated,
	"updated":  BusinessUpdated,
	"verified": BusinessVerified,
	"deleted":  BusinessDeleted,
}

var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the wire name of the event type, or "" when invalid.
func (et EventType) String() string {
	return reverseEventTypeMap[et]
}

// Operation returns the bare operation name used on the platform bus ("updated"), or "" when
// invalid.
func (et EventType) Operation() string {
	for op, t := range operationMap {
		if t == et {
			return op
		}
	}

	return ""
}

// IsRemoval reports whether the event removes the business from the index.
func (et EventType) IsRemoval() bool {
	return et == BusinessDeleted
}

// ParseEventType converts a wire name ("business.updated") or a bare operation ("updated")
// to an EventType.
func ParseEventType(s string) (EventType, error) {
	if et, ok := eventTypeMap[s]; ok {
		return et, nil
	}

	if et, ok := operationMap[s]; ok {
		return et, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidEventType, s)
}

// IsValidEventType checks if an event type wire name is valid.
func IsValidEventType(eventType string) bool {
	_, ok := eventTypeMap[eventType]

	return ok
}

// GetAllEventTypes returns all valid event type wire names. Order is not guaranteed.
func GetAllEventTypes() []string {
	types := make([]string, 0, len(eventTypeMap))
	for k := range eventTypeMap {
		types = append(types, k)
	}

	return types
}
