// Package protocol defines the closed set of messages exchanged between the
// coordinator and an engine worker, and the codecs that put them on the wire.
//
// Every frame carries an id, a kind tag and a codec-encoded body. Requests
// sent by the coordinator are answered by a response of the same kind and id.
// The worker additionally sends init (once), output notifications and input
// requests, which the coordinator answers with an input reply.
package protocol

import (
	"errors"
	"fmt"

	"github.com/kast-lang/playground/internal/lsp"
)

// Kind tags a message variant.
type Kind string

const (
	KindInit                 Kind = "init"
	KindUpdateFile           Kind = "updateFile"
	KindFormat               Kind = "format"
	KindHover                Kind = "hover"
	KindComplete             Kind = "complete"
	KindPrepareRename        Kind = "prepareRename"
	KindRename               Kind = "rename"
	KindFindDefinition       Kind = "findDefinition"
	KindInlayHints           Kind = "inlayHints"
	KindSemanticTokensLegend Kind = "semanticTokensLegend"
	KindSemanticTokens       Kind = "semanticTokens"
	KindRun                  Kind = "run"
	KindOutput               Kind = "output"
	KindInput                Kind = "input"
	KindError                Kind = "error"
)

// ErrUnknownKind is returned when a frame carries a kind outside the closed set
// for its direction.
var ErrUnknownKind = errors.New("unknown message kind")

// Message is implemented by every variant.
type Message interface {
	Kind() Kind
}

// Request is a coordinator-to-worker message.
type Request interface {
	Message
	isRequest()
}

// Response is a worker-to-coordinator message.
type Response interface {
	Message
	isResponse()
}

// Coordinator to worker.

// UpdateFileRequest replaces the contents of a document and asks for its diagnostics.
type UpdateFileRequest struct {
	URI      string `json:"uri"`
	Contents string `json:"contents"`
}

// FormatRequest asks for the edits that format a document.
type FormatRequest struct {
	URI string `json:"uri"`
}

// HoverRequest asks for hover information at a position.
type HoverRequest struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// CompleteRequest asks for completion candidates at a position.
type CompleteRequest struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// PrepareRenameRequest asks whether the symbol at a position can be renamed.
type PrepareRenameRequest struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// RenameRequest renames the symbol at a position.
type RenameRequest struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
	NewName  string       `json:"newName"`
}

// FindDefinitionRequest asks where the symbol at a position is defined.
type FindDefinitionRequest struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// InlayHintsRequest asks for a document's inlay hints.
type InlayHintsRequest struct {
	URI string `json:"uri"`
}

// SemanticTokensLegendRequest asks for the engine's token legend.
type SemanticTokensLegendRequest struct{}

// SemanticTokensRequest asks for a document's semantic tokens.
type SemanticTokensRequest struct {
	URI string `json:"uri"`
}

// RunRequest executes a program; output and input requests follow until
// the RunResponse.
type RunRequest struct {
	URI      string `json:"uri"`
	Contents string `json:"contents"`
}

// InputReply answers an InputRequest; its frame id is the request's id.
type InputReply struct {
	Line string `json:"line"`
}

// Worker to coordinator.

// Init is sent once when the worker is ready to receive requests.
type Init struct {
	Version string `json:"version,omitempty"`
}

// UpdateFileResponse carries the diagnostics of the processed contents.
type UpdateFileResponse struct {
	URI         string           `json:"uri"`
	Diagnostics []lsp.Diagnostic `json:"diagnostics"`
}

// FormatResponse answers FormatRequest.
type FormatResponse struct {
	Result []lsp.TextEdit `json:"result"`
}

// HoverResponse answers HoverRequest; Result is nil when there is nothing to show.
type HoverResponse struct {
	Result *lsp.Hover `json:"result"`
}

// CompleteResponse answers CompleteRequest.
type CompleteResponse struct {
	Result []lsp.CompletionItem `json:"result"`
}

// PrepareRenameResponse answers PrepareRenameRequest.
type PrepareRenameResponse struct {
	Result *lsp.Range `json:"result"`
}

// RenameResponse answers RenameRequest.
type RenameResponse struct {
	Result *lsp.WorkspaceEdit `json:"result"`
}

// FindDefinitionResponse answers FindDefinitionRequest.
type FindDefinitionResponse struct {
	Result []lsp.Location `json:"result"`
}

// InlayHintsResponse answers InlayHintsRequest.
type InlayHintsResponse struct {
	Result []lsp.InlayHint `json:"result"`
}

// SemanticTokensLegendResponse answers SemanticTokensLegendRequest.
type SemanticTokensLegendResponse struct {
	Legend lsp.SemanticTokensLegend `json:"legend"`
}

// SemanticTokensResponse answers SemanticTokensRequest.
type SemanticTokensResponse struct {
	Result *lsp.SemanticTokens `json:"result"`
}

// RunResponse marks the end of a run.
type RunResponse struct{}

// Output is a chunk of program output.
type Output struct {
	Chunk string `json:"chunk"`
}

// InputRequest asks the coordinator for one line of program input.
type InputRequest struct {
	Prompt string `json:"prompt"`
}

// ErrorResponse answers a request the worker could not interpret.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (UpdateFileRequest) Kind() Kind           { return KindUpdateFile }
func (FormatRequest) Kind() Kind               { return KindFormat }
func (HoverRequest) Kind() Kind                { return KindHover }
func (CompleteRequest) Kind() Kind             { return KindComplete }
func (PrepareRenameRequest) Kind() Kind        { return KindPrepareRename }
func (RenameRequest) Kind() Kind               { return KindRename }
func (FindDefinitionRequest) Kind() Kind       { return KindFindDefinition }
func (InlayHintsRequest) Kind() Kind           { return KindInlayHints }
func (SemanticTokensLegendRequest) Kind() Kind { return KindSemanticTokensLegend }
func (SemanticTokensRequest) Kind() Kind       { return KindSemanticTokens }
func (RunRequest) Kind() Kind                  { return KindRun }
func (InputReply) Kind() Kind                  { return KindInput }

func (UpdateFileRequest) isRequest()           {}
func (FormatRequest) isRequest()               {}
func (HoverRequest) isRequest()                {}
func (CompleteRequest) isRequest()             {}
func (PrepareRenameRequest) isRequest()        {}
func (RenameRequest) isRequest()               {}
func (FindDefinitionRequest) isRequest()       {}
func (InlayHintsRequest) isRequest()           {}
func (SemanticTokensLegendRequest) isRequest() {}
func (SemanticTokensRequest) isRequest()       {}
func (RunRequest) isRequest()                  {}
func (InputReply) isRequest()                  {}

func (Init) Kind() Kind                         { return KindInit }
func (UpdateFileResponse) Kind() Kind           { return KindUpdateFile }
func (FormatResponse) Kind() Kind               { return KindFormat }
func (HoverResponse) Kind() Kind                { return KindHover }
func (CompleteResponse) Kind() Kind             { return KindComplete }
func (PrepareRenameResponse) Kind() Kind        { return KindPrepareRename }
func (RenameResponse) Kind() Kind               { return KindRename }
func (FindDefinitionResponse) Kind() Kind       { return KindFindDefinition }
func (InlayHintsResponse) Kind() Kind           { return KindInlayHints }
func (SemanticTokensLegendResponse) Kind() Kind { return KindSemanticTokensLegend }
func (SemanticTokensResponse) Kind() Kind       { return KindSemanticTokens }
func (RunResponse) Kind() Kind                  { return KindRun }
func (Output) Kind() Kind                       { return KindOutput }
func (InputRequest) Kind() Kind                 { return KindInput }
func (ErrorResponse) Kind() Kind                { return KindError }

func (Init) isResponse()                         {}
func (UpdateFileResponse) isResponse()           {}
func (FormatResponse) isResponse()               {}
func (HoverResponse) isResponse()                {}
func (CompleteResponse) isResponse()             {}
func (PrepareRenameResponse) isResponse()        {}
func (RenameResponse) isResponse()               {}
func (FindDefinitionResponse) isResponse()       {}
func (InlayHintsResponse) isResponse()           {}
func (SemanticTokensLegendResponse) isResponse() {}
func (SemanticTokensResponse) isResponse()       {}
func (RunResponse) isResponse()                  {}
func (Output) isResponse()                       {}
func (InputRequest) isResponse()                 {}
func (ErrorResponse) isResponse()                {}

var requestVariants = map[Kind]func() Request{
	KindUpdateFile:           func() Request { return &UpdateFileRequest{} },
	KindFormat:               func() Request { return &FormatRequest{} },
	KindHover:                func() Request { return &HoverRequest{} },
	KindComplete:             func() Request { return &CompleteRequest{} },
	KindPrepareRename:        func() Request { return &PrepareRenameRequest{} },
	KindRename:               func() Request { return &RenameRequest{} },
	KindFindDefinition:       func() Request { return &FindDefinitionRequest{} },
	KindInlayHints:           func() Request { return &InlayHintsRequest{} },
	KindSemanticTokensLegend: func() Request { return &SemanticTokensLegendRequest{} },
	KindSemanticTokens:       func() Request { return &SemanticTokensRequest{} },
	KindRun:                  func() Request { return &RunRequest{} },
	KindInput:                func() Request { return &InputReply{} },
}

var responseVariants = map[Kind]func() Response{
	KindInit:                 func() Response { return &Init{} },
	KindUpdateFile:           func() Response { return &UpdateFileResponse{} },
	KindFormat:               func() Response { return &FormatResponse{} },
	KindHover:                func() Response { return &HoverResponse{} },
	KindComplete:             func() Response { return &CompleteResponse{} },
	KindPrepareRename:        func() Response { return &PrepareRenameResponse{} },
	KindRename:               func() Response { return &RenameResponse{} },
	KindFindDefinition:       func() Response { return &FindDefinitionResponse{} },
	KindInlayHints:           func() Response { return &InlayHintsResponse{} },
	KindSemanticTokensLegend: func() Response { return &SemanticTokensLegendResponse{} },
	KindSemanticTokens:       func() Response { return &SemanticTokensResponse{} },
	KindRun:                  func() Response { return &RunResponse{} },
	KindOutput:               func() Response { return &Output{} },
	KindInput:                func() Response { return &InputRequest{} },
	KindError:                func() Response { return &ErrorResponse{} },
}

// DecodeRequest decodes a coordinator-to-worker frame. The returned value is
// a pointer to one of the request structs.
func DecodeRequest(f *Frame) (Request, error) {
	newReq, ok := requestVariants[f.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
	req := newReq()
	if err := f.DecodeBody(req); err != nil {
		return nil, fmt.Errorf("decode %s request: %w", f.Kind, err)
	}
	return req, nil
}

// DecodeResponse decodes a worker-to-coordinator frame. The returned value is
// a pointer to one of the response structs.
func DecodeResponse(f *Frame) (Response, error) {
	newResp, ok := responseVariants[f.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
	resp := newResp()
	if err := f.DecodeBody(resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", f.Kind, err)
	}
	return resp, nil
}

// IsResponseKind reports whether k belongs to the worker-to-coordinator set.
func IsResponseKind(k Kind) bool {
	_, ok := responseVariants[k]
	return ok
}
