package app

import (
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/power"
	"github.com/dshills/waystorm/internal/workspace"
)

// logDelivery stands in for client delivery: without a protocol server,
// input that reaches a window is only logged.
type logDelivery struct {
	logger logrus.FieldLogger
}

func newLogDelivery(l logrus.FieldLogger) *logDelivery {
	return &logDelivery{logger: l}
}

func (d *logDelivery) entry(target input.Window, kind string) *logrus.Entry {
	return d.logger.WithFields(logrus.Fields{
		"window": target.ID(),
		"event":  kind,
	})
}

func (d *logDelivery) Key(target input.Window, ev input.KeyEvent) {
	d.entry(target, "key").WithFields(logrus.Fields{
		"key":   ev.Key,
		"state": ev.State,
	}).Debug("deliver")
}

func (d *logDelivery) PointerButton(target input.Window, ev input.PointerButtonEvent, local geom.Point) {
	d.entry(target, "button").WithFields(logrus.Fields{
		"button": ev.Button,
		"state":  ev.State,
		"pos":    local.String(),
	}).Debug("deliver")
}

func (d *logDelivery) PointerMotion(target input.Window, _ input.PointerMotionEvent, local geom.Point) {
	d.entry(target, "motion").WithField("pos", local.String()).Trace("deliver")
}

func (d *logDelivery) PointerAxis(target input.Window, ev input.PointerAxisEvent) {
	d.entry(target, "axis").WithField("delta", ev.Delta).Debug("deliver")
}

func (d *logDelivery) TouchDown(target input.Window, ev input.TouchEvent, local geom.Point) {
	d.entry(target, "touch down").WithFields(logrus.Fields{
		"id":  ev.ID,
		"pos": local.String(),
	}).Debug("deliver")
}

func (d *logDelivery) TouchMotion(target input.Window, ev input.TouchEvent, local geom.Point) {
	d.entry(target, "touch motion").WithFields(logrus.Fields{
		"id":  ev.ID,
		"pos": local.String(),
	}).Trace("deliver")
}

func (d *logDelivery) TouchUp(target input.Window, ev input.TouchEvent) {
	d.entry(target, "touch up").WithField("id", ev.ID).Debug("deliver")
}

func (d *logDelivery) TouchFrame(target input.Window) {
	d.entry(target, "touch frame").Trace("deliver")
}

func (d *logDelivery) TouchCancel(target input.Window) {
	d.entry(target, "touch cancel").Debug("deliver")
}

// scene exposes the workspace and blanking state to the nested window.
type scene struct {
	workspace *workspace.Workspace
	power     *power.Manager
}

func (s *scene) Windows() []geom.Rect {
	windows := s.workspace.Windows()
	out := make([]geom.Rect, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.Geometry())
	}
	return out
}

func (s *scene) Blanked() bool {
	return s.power.IsBacklightOff()
}
