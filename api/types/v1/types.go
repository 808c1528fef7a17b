// Package types defines the JSON bodies served by the voicebridge API.
package types

// HealthResponse is the response from /api/v1/health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

// StatsResponse is the response from /api/v1/stats
type StatsResponse struct {
	Uptime            int64 `json:"uptime"`
	ActiveCalls       int   `json:"active_calls"`
	FramesToSpeech    int64 `json:"frames_to_speech"`
	FramesToTelephony int64 `json:"frames_to_telephony"`
	FramesDropped     int64 `json:"frames_dropped"` // pre-start drops plus decode failures
}
