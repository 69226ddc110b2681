// Package nested runs the compositor input inside a desktop window. The
// window stands for one output; mouse, keyboard and touch input on it is
// polled once per tick and turned into raw device events.
package nested

import (
	"context"
	"image/color"
	"io"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/backend"
	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
)

// Device is the name of the single device the window reports as.
const Device = "nested"

const wheelStep = 15.0

// Scene supplies what the window draws.
type Scene interface {
	// Windows returns window frames in output coordinates, bottom first.
	Windows() []geom.Rect
	// Blanked reports whether the output is off.
	Blanked() bool
}

var (
	backgroundColor = color.RGBA{0x20, 0x24, 0x2c, 0xff}
	frameColor      = color.RGBA{0x9a, 0xb8, 0xd8, 0xff}
)

// Backend is an ebiten window.
type Backend struct {
	title  string
	width  int
	height int
	logger logrus.FieldLogger
	scene  Scene

	mu      sync.Mutex
	tracker *backend.FrameTracker
	ctx     context.Context
}

// Option configures a Backend.
type Option func(*Backend)

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(b *Backend) {
		b.title = title
	}
}

// WithScene sets what is drawn in the window.
func WithScene(s Scene) Option {
	return func(b *Backend) {
		b.scene = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a window backend of the given output size.
func New(width, height int, opts ...Option) *Backend {
	l := logrus.New()
	l.SetOutput(io.Discard)
	b := &Backend{
		title:  "waystorm",
		width:  width,
		height: height,
		logger: l,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "nested".
func (b *Backend) Name() string { return "nested" }

// Open does nothing; the window is created by RunMain.
func (b *Backend) Open(context.Context) error { return nil }

// Run announces the window as a keyboard, pointer and touch device and
// feeds its input into sink until ctx is done.
func (b *Backend) Run(ctx context.Context, sink connection.Sink) error {
	e := backend.NewEmitter(sink, Device)
	e.Added(input.CapKeyboard, input.CapPointer, input.CapTouch)

	b.mu.Lock()
	b.tracker = backend.NewFrameTracker(e)
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	b.tracker.Reset()
	b.tracker = nil
	b.mu.Unlock()
	e.Removed()
	return nil
}

// SetGrab is a no-op.
func (b *Backend) SetGrab(bool) error { return nil }

// Close does nothing; the window closes when RunMain returns.
func (b *Backend) Close() error { return nil }

// RunMain opens the window and runs the ebiten loop on the calling
// goroutine until ctx is done or the window is closed.
func (b *Backend) RunMain(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	ebiten.SetWindowTitle(b.title)
	ebiten.SetWindowSize(b.width, b.height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	b.logger.WithFields(logrus.Fields{
		"width":  b.width,
		"height": b.height,
	}).Info("opening nested window")
	return ebiten.RunGame(&game{b: b})
}

type game struct {
	b *Backend
}

func (g *game) Update() error {
	b := g.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx.Err() != nil {
		return ebiten.Termination
	}
	if b.tracker != nil {
		b.tracker.Update(g.poll())
	}
	return nil
}

func (g *game) poll() backend.Frame {
	w, h := float64(g.b.width), float64(g.b.height)
	f := backend.Frame{
		Keys:    heldKeys(),
		Buttons: make(map[uint32]bool),
		Touches: make(map[int32]geom.Point),
	}

	mx, my := ebiten.CursorPosition()
	if mx >= 0 && my >= 0 && float64(mx) < w && float64(my) < h {
		f.Cursor = geom.Pt(float64(mx)/w, float64(my)/h)
		f.HasCursor = true
	}
	for _, m := range mouseButtons {
		if ebiten.IsMouseButtonPressed(m.eb) {
			f.Buttons[m.button] = true
		}
	}
	// ebiten reports notches with scrolling up as positive.
	wx, wy := ebiten.Wheel()
	f.Wheel = geom.Pt(wx*wheelStep, -wy*wheelStep)

	for _, id := range ebiten.AppendTouchIDs(nil) {
		tx, ty := ebiten.TouchPosition(id)
		f.Touches[int32(id)] = geom.Pt(float64(tx)/w, float64(ty)/h)
	}
	return f
}

var mouseButtons = []struct {
	eb     ebiten.MouseButton
	button uint32
}{
	{ebiten.MouseButtonLeft, input.BtnLeft},
	{ebiten.MouseButtonRight, input.BtnRight},
	{ebiten.MouseButtonMiddle, input.BtnMiddle},
}

func (g *game) Draw(screen *ebiten.Image) {
	scene := g.b.scene
	if scene != nil && scene.Blanked() {
		screen.Fill(color.Black)
		return
	}
	screen.Fill(backgroundColor)
	if scene == nil {
		return
	}
	for _, r := range scene.Windows() {
		vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), 2, frameColor, false)
	}
}

func (g *game) Layout(int, int) (int, int) {
	return g.b.width, g.b.height
}
