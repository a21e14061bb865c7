package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedFrame marks a frame that could not be parsed but after which the
// stream is still usable.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded unit on the wire. Body stays encoded until
// DecodeBody is called with the variant the kind selects.
type Frame struct {
	ID    uint64
	Kind  Kind
	Body  []byte
	codec Codec
}

// DecodeBody decodes the frame body into v using the codec that read it.
func (f *Frame) DecodeBody(v any) error {
	if len(f.Body) == 0 {
		return nil
	}
	if f.codec == nil {
		return errors.New("frame has no codec")
	}
	return f.codec.unmarshalBody(f.Body, v)
}

// Codec turns messages into self-delimiting byte sequences and back.
type Codec interface {
	Name() string
	// Marshal encodes a complete frame. The result can be written to a stream as is.
	Marshal(id uint64, msg Message) ([]byte, error)
	NewDecoder(r io.Reader) FrameDecoder
	unmarshalBody(data []byte, v any) error
}

// FrameDecoder reads consecutive frames from a stream.
type FrameDecoder interface {
	Decode() (*Frame, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

const maxJSONFrame = 64 * 1024 * 1024

// JSONCodec writes one JSON object per line.
type JSONCodec struct{}

type jsonFrame struct {
	ID   uint64          `json:"id,omitempty"`
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(id uint64, msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", msg.Kind(), err)
	}
	data, err := json.Marshal(jsonFrame{ID: id, Kind: msg.Kind(), Body: body})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (c JSONCodec) NewDecoder(r io.Reader) FrameDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxJSONFrame)
	return &jsonDecoder{scanner: scanner, codec: c}
}

func (JSONCodec) unmarshalBody(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type jsonDecoder struct {
	scanner *bufio.Scanner
	codec   JSONCodec
}

func (d *jsonDecoder) Decode() (*Frame, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var wire jsonFrame
		if err := json.Unmarshal(line, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		// the scanner reuses its buffer
		body := append([]byte(nil), wire.Body...)
		return &Frame{ID: wire.ID, Kind: wire.Kind, Body: body, codec: d.codec}, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// MsgpackCodec writes consecutive msgpack-encoded frames. Message structs are
// encoded by their json tags so both codecs agree on field names.
type MsgpackCodec struct{}

type msgpackFrame struct {
	ID   uint64             `msgpack:"id,omitempty"`
	Kind string             `msgpack:"kind"`
	Body msgpack.RawMessage `msgpack:"body,omitempty"`
}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(id uint64, msg Message) ([]byte, error) {
	body, err := msgpackMarshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", msg.Kind(), err)
	}
	return msgpackMarshal(msgpackFrame{ID: id, Kind: string(msg.Kind()), Body: body})
}

func (c MsgpackCodec) NewDecoder(r io.Reader) FrameDecoder {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.SetCustomStructTag("json")
	return &msgpackDecoder{dec: dec, codec: c}
}

func (MsgpackCodec) unmarshalBody(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func msgpackMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type msgpackDecoder struct {
	dec   *msgpack.Decoder
	codec MsgpackCodec
}

func (d *msgpackDecoder) Decode() (*Frame, error) {
	var wire msgpackFrame
	if err := d.dec.Decode(&wire); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &Frame{ID: wire.ID, Kind: Kind(wire.Kind), Body: wire.Body, codec: d.codec}, nil
}
