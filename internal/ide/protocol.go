// Package ide talks to a persistent PureScript IDE server: one JSON request
// per client exchange, a supervised server process and classification of
// rebuild results.
package ide

import (
	"encoding/json"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

// Result types reported by the server.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Request is one command sent to the server.
type Request struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// Position is a source range, 1-based and inclusive.
type Position struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// ResultItem is one diagnostic from a rebuild.
type ResultItem struct {
	ErrorCode  string    `json:"errorCode"`
	Message    string    `json:"message"`
	ModuleName string    `json:"moduleName,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Position   *Position `json:"position,omitempty"`
}

// Response is a parsed server reply. Result is a list of items for rebuilds
// and a plain message for most other commands.
type Response struct {
	ResultType string          `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// Items returns the result list, or nil when the result is not a list.
func (r *Response) Items() []ResultItem {
	var items []ResultItem
	if err := json.Unmarshal(r.Result, &items); err != nil {
		return nil
	}
	return items
}

// Success reports whether the server accepted the command.
func (r *Response) Success() bool { return r.ResultType == ResultSuccess }

// ParseResponse decodes raw client stdout.
func ParseResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.ProtocolParseError(err).WithContext("response", string(raw)).Build()
	}
	return &resp, nil
}
