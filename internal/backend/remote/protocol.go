package remote

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

// Message types understood by the server. Every message is a JSON object
// with a "type" field; an optional numeric "seq" is echoed in an ack.
const (
	MsgKey            = "key"
	MsgButton         = "button"
	MsgMotion         = "motion"
	MsgMotionAbsolute = "motion_absolute"
	MsgAxis           = "axis"
	MsgTouchDown      = "touch_down"
	MsgTouchMotion    = "touch_motion"
	MsgTouchUp        = "touch_up"
	MsgTouchFrame     = "touch_frame"
	MsgTouchCancel    = "touch_cancel"
	MsgPing           = "ping"
)

// Reply types sent by the server.
const (
	ReplyWelcome = "welcome"
	ReplyAck     = "ack"
	ReplyPong    = "pong"
	ReplyError   = "error"
)

func field(msg gjson.Result, name string) (gjson.Result, error) {
	v := msg.Get(name)
	if !v.Exists() {
		return v, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v, nil
}

func numberField(msg gjson.Result, name string) (float64, error) {
	v, err := field(msg, name)
	if err != nil {
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidField, name)
	}
	return v.Float(), nil
}

func parseKey(msg gjson.Result) (key.Code, input.KeyState, error) {
	v, err := field(msg, "key")
	if err != nil {
		return key.CodeNone, 0, err
	}
	var code key.Code
	switch v.Type {
	case gjson.Number:
		code = key.Code(v.Uint())
	case gjson.String:
		code = key.CodeFromName(v.String())
	}
	if code == key.CodeNone {
		return key.CodeNone, 0, fmt.Errorf("%w: key %s", ErrInvalidField, v.Raw)
	}

	switch strings.ToLower(msg.Get("state").String()) {
	case "pressed", "press", "down":
		return code, input.KeyPressed, nil
	case "released", "release", "up":
		return code, input.KeyReleased, nil
	case "repeated", "repeat":
		return code, input.KeyRepeated, nil
	}
	return code, 0, fmt.Errorf("%w: state %q", ErrInvalidField, msg.Get("state").String())
}

var buttonNames = map[string]uint32{
	"left":   input.BtnLeft,
	"right":  input.BtnRight,
	"middle": input.BtnMiddle,
	"side":   input.BtnSide,
	"extra":  input.BtnExtra,
}

func parseButton(msg gjson.Result) (uint32, input.ButtonState, error) {
	v, err := field(msg, "button")
	if err != nil {
		return 0, 0, err
	}
	var button uint32
	switch v.Type {
	case gjson.Number:
		button = uint32(v.Uint())
	case gjson.String:
		button = buttonNames[strings.ToLower(v.String())]
	}
	if button == 0 {
		return 0, 0, fmt.Errorf("%w: button %s", ErrInvalidField, v.Raw)
	}

	switch strings.ToLower(msg.Get("state").String()) {
	case "pressed", "press", "down":
		return button, input.ButtonPressed, nil
	case "released", "release", "up":
		return button, input.ButtonReleased, nil
	}
	return button, 0, fmt.Errorf("%w: state %q", ErrInvalidField, msg.Get("state").String())
}

func parseAxis(msg gjson.Result) (input.Axis, float64, error) {
	delta, err := numberField(msg, "delta")
	if err != nil {
		return 0, 0, err
	}
	switch strings.ToLower(msg.Get("axis").String()) {
	case "", "vertical":
		return input.AxisVertical, delta, nil
	case "horizontal":
		return input.AxisHorizontal, delta, nil
	}
	return 0, 0, fmt.Errorf("%w: axis %q", ErrInvalidField, msg.Get("axis").String())
}

// parsePosition reads normalized x and y and an optional output index.
func parsePosition(msg gjson.Result) (geom.Point, int, error) {
	x, err := numberField(msg, "x")
	if err != nil {
		return geom.Point{}, 0, err
	}
	y, err := numberField(msg, "y")
	if err != nil {
		return geom.Point{}, 0, err
	}
	output := connection.NoOutput
	if o := msg.Get("output"); o.Exists() {
		output = int(o.Int())
	}
	return geom.Pt(x, y), output, nil
}

func parseTouchID(msg gjson.Result) (int32, error) {
	id, err := numberField(msg, "id")
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}

// reply builds a reply object of type typ with the given extra fields.
func reply(typ string, fields ...any) []byte {
	out, _ := sjson.SetBytes([]byte(`{}`), "type", typ)
	for i := 0; i+1 < len(fields); i += 2 {
		name, ok := fields[i].(string)
		if !ok {
			continue
		}
		out, _ = sjson.SetBytes(out, name, fields[i+1])
	}
	return out
}
