// Package protocol defines the wire contract between the NitroGen inference
// client and the model server: the request/response envelopes, the image and
// action payload types, and the length-prefixed framing used to carry
// msgpack-encoded envelopes over a TCP stream.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Request types accepted by the model server.
const (
	TypePredict = "predict"
	TypeReset   = "reset"
	TypeInfo    = "info"
)

// Response status values. Every server reply carries exactly one of these.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Image is a dense H×W×3 RGB frame. Data is row-major with interleaved
// channels: the sample at (x, y) starts at (y*Width+x)*3.
type Image struct {
	Height int    `msgpack:"height"`
	Width  int    `msgpack:"width"`
	Data   []byte `msgpack:"data"`
}

// NewImage allocates a zeroed (black) frame of the given dimensions.
func NewImage(height, width int) *Image {
	return &Image{
		Height: height,
		Width:  width,
		Data:   make([]byte, height*width*3),
	}
}

// SetRGB stores one pixel. The caller is responsible for bounds.
func (im *Image) SetRGB(x, y int, r, g, b uint8) {
	off := (y*im.Width + x) * 3
	im.Data[off] = r
	im.Data[off+1] = g
	im.Data[off+2] = b
}

// Validate checks that the declared dimensions are positive and match the
// sample buffer. The pixel contents themselves are never inspected; a frame
// the model cannot use is the server's to reject.
func (im *Image) Validate() error {
	if im.Height <= 0 || im.Width <= 0 {
		return fmt.Errorf("nitrogen protocol: image dimensions %dx%d must be positive", im.Height, im.Width)
	}
	if want := im.Height * im.Width * 3; len(im.Data) != want {
		return fmt.Errorf("nitrogen protocol: image data is %d bytes, want %d (%dx%dx3)", len(im.Data), want, im.Height, im.Width)
	}
	return nil
}

// Action is one predicted controller state. The server defines how many
// actions a prediction contains and what each button position means; the
// client transports the records without interpreting them.
type Action struct {
	JLeft   [2]float64 `msgpack:"j_left"`
	JRight  [2]float64 `msgpack:"j_right"`
	Buttons []int      `msgpack:"buttons"`
}

// Request is the envelope sent to the model server. Image is only present
// for predict requests.
type Request struct {
	Type  string `msgpack:"type"`
	Image *Image `msgpack:"image,omitempty"`
}

// Response is the envelope returned by the model server. Exactly one of
// Pred/Info is populated on success, depending on the request type; Message
// is only meaningful when Status is StatusError.
type Response struct {
	Status  string                 `msgpack:"status"`
	Message string                 `msgpack:"message,omitempty"`
	Pred    []Action               `msgpack:"pred,omitempty"`
	Info    map[string]interface{} `msgpack:"info,omitempty"`
}

// EncodeRequest serialises a request envelope to msgpack bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	raw, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("nitrogen protocol: encode request: %w", err)
	}
	return raw, nil
}

// DecodeRequest parses msgpack bytes into a request envelope.
func DecodeRequest(raw []byte) (*Request, error) {
	req := &Request{}
	if err := msgpack.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("nitrogen protocol: decode request: %w", err)
	}
	return req, nil
}

// EncodeResponse serialises a response envelope to msgpack bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	raw, err := msgpack.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("nitrogen protocol: encode response: %w", err)
	}
	return raw, nil
}

// DecodeResponse parses msgpack bytes into a response envelope.
func DecodeResponse(raw []byte) (*Response, error) {
	resp := &Response{}
	if err := msgpack.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("nitrogen protocol: decode response: %w", err)
	}
	return resp, nil
}
