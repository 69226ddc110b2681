package connection

import (
	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
)

// Observer receives the normalized events emitted by ProcessEvents, one
// call per raw event, in the order the events were collected.
//
// *input.Redirection satisfies Observer.
type Observer interface {
	KeyChanged(key uint32, state input.KeyState, time uint32)
	PointerButtonChanged(button uint32, state input.ButtonState, time uint32)
	PointerMotion(delta geom.Point, time uint32)
	PointerMotionAbsolute(orig, screen geom.Point, time uint32)
	PointerAxisChanged(axis input.Axis, delta float64, time uint32)
	TouchDown(id int32, pos geom.Point, time uint32)
	TouchMotion(id int32, pos geom.Point, time uint32)
	TouchUp(id int32, time uint32)
	TouchFrame()
	TouchCanceled()
	CapabilityChanged(c input.Capability, present bool)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the notifications of interest.
type NopObserver struct{}

func (NopObserver) KeyChanged(uint32, input.KeyState, uint32) {}
func (NopObserver) PointerButtonChanged(uint32, input.ButtonState, uint32) {}
func (NopObserver) PointerMotion(geom.Point, uint32) {}
func (NopObserver) PointerMotionAbsolute(geom.Point, geom.Point, uint32) {}
func (NopObserver) PointerAxisChanged(input.Axis, float64, uint32) {}
func (NopObserver) TouchDown(int32, geom.Point, uint32) {}
func (NopObserver) TouchMotion(int32, geom.Point, uint32) {}
func (NopObserver) TouchUp(int32, uint32) {}
func (NopObserver) TouchFrame() {}
func (NopObserver) TouchCanceled() {}
func (NopObserver) CapabilityChanged(input.Capability, bool) {}
