package events

import "fmt"

// Subject naming conventions for NATS.
//
// Hierarchy:
//   voicebridge.calls.<bridge_id>.<event_suffix>  - Per-call events
//
// Wildcard subscriptions:
//   voicebridge.calls.>                           - All call events
//   voicebridge.calls.*.ended                     - All call.ended events

const (
	// SubjectPrefix is the root of all voicebridge subjects
	SubjectPrefix = "voicebridge"

	SubjectCalls         = SubjectPrefix + ".calls"
	SubjectCallStarted   = "started"
	SubjectCallStreaming = "streaming"
	SubjectCallEnded     = "ended"

	// SubjectAllCalls matches every call event
	SubjectAllCalls = SubjectCalls + ".>"
)

// CallSubject builds a subject for a specific call event.
// Example: CallSubject("bridge-1", "ended") => "voicebridge.calls.bridge-1.ended"
func CallSubject(bridgeID string, eventSuffix string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectCalls, bridgeID, eventSuffix)
}
