package input

import "github.com/dshills/waystorm/internal/geom"

// activationFilter activates the window under a touch-down or a pointer
// press. It never consumes the event, so the press still reaches the
// window it activated.
type activationFilter struct {
	BaseFilter
	windows WindowLookup
}

func (f *activationFilter) Name() string {
	return "activation"
}

func (f *activationFilter) PointerButton(ev PointerButtonEvent) bool {
	if ev.State == ButtonPressed {
		f.activateAt(ev.Pos)
	}
	return false
}

func (f *activationFilter) TouchDown(ev TouchEvent) bool {
	f.activateAt(ev.Pos)
	return false
}

func (f *activationFilter) activateAt(p geom.Point) {
	w := f.windows.WindowAt(p)
	if w != nil && !w.IsActive() {
		f.windows.Activate(w)
	}
}
