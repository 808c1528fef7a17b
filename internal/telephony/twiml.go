package telephony

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// VoiceResponse is the call-control document returned to the carrier when a
// call arrives. It greets the caller and connects the call to the media
// stream endpoint.
type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:"Say,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
}

type Say struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type Connect struct {
	Stream Stream `xml:"Stream"`
}

type Stream struct {
	URL string `xml:"url,attr"`
}

// StreamURL builds the websocket URL the carrier should stream media to.
func StreamURL(publicHost, path string) string {
	host := strings.TrimSuffix(publicHost, "/")
	for _, scheme := range []string{"https://", "http://", "wss://", "ws://"} {
		host = strings.TrimPrefix(host, scheme)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "wss://" + host + path
}

// NewVoiceResponse builds the document. An empty greeting omits <Say>; an
// empty stream URL omits <Connect>, so the call ends after the greeting.
func NewVoiceResponse(greeting, voice, streamURL string) *VoiceResponse {
	r := &VoiceResponse{}
	if greeting != "" {
		r.Say = &Say{Voice: voice, Text: greeting}
	}
	if streamURL != "" {
		r.Connect = &Connect{Stream: Stream{URL: streamURL}}
	}
	return r
}

// Marshal renders the document with an XML header.
func (r *VoiceResponse) Marshal() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal voice response: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
