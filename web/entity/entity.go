// Package entity defines the response shapes of the pwless web layer.
package entity

// Msg is the standard API response envelope.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

// Banner is a non-fatal, user-visible error rendered by the host page. Kind
// and Field let the page attach the message to the offending input.
type Banner struct {
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
	Msg   string `json:"msg"`
}
