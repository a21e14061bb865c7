package websocket

// Request actions, client to server.
const (
	ActionHealthCheck = "health.check"

	ActionFileUpdate = "file.update"

	ActionLSPFormat               = "lsp.format"
	ActionLSPHover                = "lsp.hover"
	ActionLSPComplete             = "lsp.complete"
	ActionLSPPrepareRename        = "lsp.prepareRename"
	ActionLSPRename               = "lsp.rename"
	ActionLSPDefinition           = "lsp.definition"
	ActionLSPInlayHints           = "lsp.inlayHints"
	ActionLSPSemanticTokens       = "lsp.semanticTokens"
	ActionLSPSemanticTokensLegend = "lsp.semanticTokensLegend"

	ActionRunStart = "run.start"
	ActionRunInput = "run.input"
)

// Notification actions, server to client.
const (
	ActionDiagnosticsPublish = "diagnostics.publish"
	ActionRunOutput          = "run.output"
	ActionRunInputRequest    = "run.input.request"
	ActionRunState           = "run.state"
)

// Error codes
const (
	ErrorCodeBadRequest        = "BAD_REQUEST"
	ErrorCodeNotFound          = "NOT_FOUND"
	ErrorCodeInternalError     = "INTERNAL_ERROR"
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeUnknownAction     = "UNKNOWN_ACTION"
	ErrorCodeWorkerUnavailable = "WORKER_UNAVAILABLE"
	ErrorCodeRunInProgress     = "RUN_IN_PROGRESS"
)
