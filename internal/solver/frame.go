package solver

import (
	"encoding/json"
)

// Frame is one decoded server message: *IterationFrame, *CompleteFrame or
// *WarningFrame.
type Frame interface {
	FrameType() FrameType
}

// IterationFrame is pushed once per solver step.
type IterationFrame struct {
	Meta  IterationMetrics `json:"meta"`
	Shape Geometry         `json:"shape"`
}

// CompleteFrame carries the final results of a run.
type CompleteFrame struct {
	Meta         FinalMetrics `json:"meta"`
	Shape        Geometry     `json:"shape"`
	InitialShape Geometry     `json:"initial_shape"`
}

// WarningFrame is informational and mutates no state.
type WarningFrame struct {
	Message   string `json:"message"`
	Iteration int    `json:"iteration"`
}

func (*IterationFrame) FrameType() FrameType { return FrameIteration }
func (*CompleteFrame) FrameType() FrameType  { return FrameComplete }
func (*WarningFrame) FrameType() FrameType   { return FrameWarning }

// envelope is the common shape of every frame.
type envelope struct {
	Type         FrameType       `json:"type"`
	Meta         json.RawMessage `json:"meta"`
	Shape        json.RawMessage `json:"shape"`
	InitialShape json.RawMessage `json:"initial_shape"`
	Message      string          `json:"message"`
	Iteration    int             `json:"iteration"`
}

// DecodeFrame parses a text message. It returns (nil, nil) for a frame whose
// type is missing or unknown, and a *ProtocolError for non-JSON input or a
// known type with a malformed payload.
func DecodeFrame(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Message: "frame is not valid JSON", Err: err}
	}

	switch env.Type {
	case FrameIteration:
		if len(env.Meta) == 0 {
			return nil, &ProtocolError{Message: "iteration frame without meta"}
		}
		f := &IterationFrame{}
		if err := json.Unmarshal(env.Meta, &f.Meta); err != nil {
			return nil, &ProtocolError{Message: "iteration meta", Err: err}
		}
		if err := decodeShape(env.Shape, &f.Shape); err != nil {
			return nil, &ProtocolError{Message: "iteration shape", Err: err}
		}
		return f, nil

	case FrameComplete:
		f := &CompleteFrame{}
		if len(env.Meta) > 0 {
			if err := json.Unmarshal(env.Meta, &f.Meta); err != nil {
				return nil, &ProtocolError{Message: "complete meta", Err: err}
			}
		}
		if err := decodeShape(env.Shape, &f.Shape); err != nil {
			return nil, &ProtocolError{Message: "complete shape", Err: err}
		}
		if err := decodeShape(env.InitialShape, &f.InitialShape); err != nil {
			return nil, &ProtocolError{Message: "complete initial_shape", Err: err}
		}
		return f, nil

	case FrameWarning:
		return &WarningFrame{Message: env.Message, Iteration: env.Iteration}, nil
	}

	return nil, nil
}

func decodeShape(raw json.RawMessage, g *Geometry) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, g)
}
