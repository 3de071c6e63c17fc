package daemon

import (
	"dwmm/internal/core/indexer"
	"dwmm/internal/engine/parser"
)

// Messages are newline-delimited JSON values. Requests carry a seq that the
// matching response echoes; pushes carry none.

type Request struct {
	Seq            int64           `json:"seq"`
	Suggest        *SuggestRequest `json:"suggest,omitempty"`
	Wheres         *WheresRequest  `json:"wheres,omitempty"`
	WaitUntilReady *struct{}       `json:"waitUntilReady,omitempty"`
	Stop           bool            `json:"stop,omitempty"`
	Kill           bool            `json:"kill,omitempty"`
}

// SuggestRequest asks for imports for every undefined identifier in Code,
// or in the contents of File when Code is nil.
type SuggestRequest struct {
	Code *string `json:"code,omitempty"`
	File string  `json:"file"`
}

// WheresRequest asks where Identifier can be imported from, with paths
// relative to File.
type WheresRequest struct {
	Identifier string `json:"identifier"`
	File       string `json:"file"`
}

// Kind names the request for logs and metrics.
func (r Request) Kind() string {
	switch {
	case r.Stop:
		return "stop"
	case r.Kill:
		return "kill"
	case r.Suggest != nil:
		return "suggest"
	case r.Wheres != nil:
		return "wheres"
	case r.WaitUntilReady != nil:
		return "waitUntilReady"
	default:
		return "unknown"
	}
}

type Response struct {
	Seq      *int64            `json:"seq,omitempty"`
	Suggest  SuggestResult     `json:"suggest,omitempty"`
	Wheres   SuggestResult     `json:"wheres,omitempty"`
	Error    string            `json:"error,omitempty"`
	Progress *indexer.Progress `json:"progress,omitempty"`
	Ready    bool              `json:"ready,omitempty"`
}

// SuggestResult maps each identifier to its suggestions.
type SuggestResult map[string]*IdentifierSuggestions

type IdentifierSuggestions struct {
	Identifier string            `json:"identifier"`
	Start      *parser.Position  `json:"start,omitempty"`
	End        *parser.Position  `json:"end,omitempty"`
	Context    string            `json:"context,omitempty"`
	Kind       parser.Kind       `json:"kind,omitempty"`
	Suggested  []SuggestedImport `json:"suggested"`
}

// SuggestedImport is one rendered import statement and its syntax tree.
type SuggestedImport struct {
	Code string `json:"code"`
	AST  any    `json:"ast,omitempty"`
}

func reply(seq int64) Response {
	return Response{Seq: &seq}
}
