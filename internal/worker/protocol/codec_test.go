package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kast-lang/playground/internal/lsp"
)

func codecs() []Codec {
	return []Codec{JSONCodec{}, MsgpackCodec{}}
}

func TestCodec_StreamPreservesOrderAndBodies(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			msgs := []struct {
				id  uint64
				msg Message
			}{
				{0, Init{Version: "0.1"}},
				{1, HoverRequest{URI: "f", Position: lsp.Position{Line: 2, Character: 4}}},
				{2, RenameRequest{URI: "f", Position: lsp.Position{Line: 0, Character: 4}, NewName: "y"}},
				{3, SemanticTokensLegendRequest{}},
			}
			for _, m := range msgs {
				data, err := codec.Marshal(m.id, m.msg)
				require.NoError(t, err)
				buf.Write(data)
			}

			dec := codec.NewDecoder(&buf)

			f, err := dec.Decode()
			require.NoError(t, err)
			resp, err := DecodeResponse(f)
			require.NoError(t, err)
			assert.Equal(t, &Init{Version: "0.1"}, resp)

			f, err = dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), f.ID)
			req, err := DecodeRequest(f)
			require.NoError(t, err)
			assert.Equal(t, &HoverRequest{URI: "f", Position: lsp.Position{Line: 2, Character: 4}}, req)

			f, err = dec.Decode()
			require.NoError(t, err)
			req, err = DecodeRequest(f)
			require.NoError(t, err)
			assert.Equal(t, "y", req.(*RenameRequest).NewName)

			f, err = dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, KindSemanticTokensLegend, f.Kind)
			_, err = DecodeRequest(f)
			require.NoError(t, err)

			_, err = dec.Decode()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestCodec_NullResultsStayNull(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(7, HoverResponse{})
			require.NoError(t, err)
			f, err := codec.NewDecoder(bytes.NewReader(data)).Decode()
			require.NoError(t, err)
			resp, err := DecodeResponse(f)
			require.NoError(t, err)
			assert.Nil(t, resp.(*HoverResponse).Result)
		})
	}
}

func TestCodec_RichResponse(t *testing.T) {
	edit := &lsp.WorkspaceEdit{Changes: map[string][]lsp.TextEdit{
		"f": {{Range: lsp.Range{End: lsp.Position{Character: 1}}, NewText: "y"}},
	}}
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(9, RenameResponse{Result: edit})
			require.NoError(t, err)
			f, err := codec.NewDecoder(bytes.NewReader(data)).Decode()
			require.NoError(t, err)
			resp, err := DecodeResponse(f)
			require.NoError(t, err)
			assert.Equal(t, edit, resp.(*RenameResponse).Result)
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(1, FormatRequest{URI: "f"})
			require.NoError(t, err)
			f, err := codec.NewDecoder(bytes.NewReader(data)).Decode()
			require.NoError(t, err)

			f.Kind = "telepathy"
			_, err = DecodeRequest(f)
			assert.ErrorIs(t, err, ErrUnknownKind)
			_, err = DecodeResponse(f)
			assert.ErrorIs(t, err, ErrUnknownKind)
		})
	}
}

func TestDecode_DirectionMatters(t *testing.T) {
	// output only travels from worker to coordinator
	f := &Frame{Kind: KindOutput}
	_, err := DecodeRequest(f)
	assert.ErrorIs(t, err, ErrUnknownKind)

	f = &Frame{Kind: KindRename}
	_, err = DecodeResponse(f)
	assert.NoError(t, err)
}

func TestVariantsCoverEveryKind(t *testing.T) {
	for kind, newReq := range requestVariants {
		assert.Equal(t, kind, newReq().Kind())
	}
	for kind, newResp := range responseVariants {
		assert.Equal(t, kind, newResp().Kind())
	}
	for _, kind := range []Kind{KindUpdateFile, KindFormat, KindHover, KindComplete, KindPrepareRename,
		KindRename, KindFindDefinition, KindInlayHints, KindSemanticTokensLegend, KindSemanticTokens, KindRun} {
		assert.Contains(t, requestVariants, kind)
		assert.Contains(t, responseVariants, kind, "every request kind needs a matching response")
	}
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())
	c, err = CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())
	_, err = CodecByName("xml")
	assert.Error(t, err)
}

func TestJSONDecoder_SkipsMalformedLine(t *testing.T) {
	good, err := JSONCodec{}.Marshal(4, FormatRequest{URI: "f"})
	require.NoError(t, err)
	stream := append([]byte("{not json\n\n"), good...)

	dec := JSONCodec{}.NewDecoder(bytes.NewReader(stream))
	_, err = dec.Decode()
	require.ErrorIs(t, err, ErrMalformedFrame)

	f, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), f.ID)
}
