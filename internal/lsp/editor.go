package lsp

// EditorPosition is the editor widget's 1-based line/column coordinate.
type EditorPosition struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// EditorRange is a 1-based range in editor coordinates.
type EditorRange struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// ToLSP converts an editor position into engine coordinates.
func (p EditorPosition) ToLSP() Position {
	return Position{Line: p.LineNumber - 1, Character: p.Column - 1}
}

// Valid reports whether p can be converted without producing negative offsets.
func (p EditorPosition) Valid() bool {
	return p.LineNumber >= 1 && p.Column >= 1
}

// ToEditor converts an engine position into editor coordinates.
func ToEditor(p Position) EditorPosition {
	return EditorPosition{LineNumber: p.Line + 1, Column: p.Character + 1}
}

// ToLSP converts an editor range into engine coordinates.
func (r EditorRange) ToLSP() Range {
	return Range{
		Start: EditorPosition{LineNumber: r.StartLineNumber, Column: r.StartColumn}.ToLSP(),
		End:   EditorPosition{LineNumber: r.EndLineNumber, Column: r.EndColumn}.ToLSP(),
	}
}

// ToEditorRange converts an engine range into editor coordinates.
func ToEditorRange(r Range) EditorRange {
	start, end := ToEditor(r.Start), ToEditor(r.End)
	return EditorRange{
		StartLineNumber: start.LineNumber,
		StartColumn:     start.Column,
		EndLineNumber:   end.LineNumber,
		EndColumn:       end.Column,
	}
}
