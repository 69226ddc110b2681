package linuxinput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dshills/waystorm/internal/input/connection"
)

// DefaultDir is where the kernel exposes event devices.
const DefaultDir = "/dev/input"

const (
	pollTimeoutMs = 100
	openAttempts  = 20
)

type device struct {
	path string
	name string
	dev  *evdev.InputDevice
	fd   int
	caps deviceClass
	dec  *decoder
}

// Source reads evdev devices from a directory. All devices are multiplexed
// with poll(2) on the single worker goroutine that runs Run. Devices
// appearing or disappearing in the directory are picked up through
// fsnotify.
type Source struct {
	dir    string
	logger logrus.FieldLogger
	match  func(name string) bool

	mu      sync.Mutex
	devices map[string]*device
	pending map[string]int
	grab    bool
	watcher *fsnotify.Watcher
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithDir overrides the device directory.
func WithDir(dir string) SourceOption {
	return func(s *Source) {
		s.dir = dir
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(l logrus.FieldLogger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDeviceFilter restricts the source to devices whose name or path
// contains one of the given patterns. An empty list accepts every device.
func WithDeviceFilter(patterns []string) SourceOption {
	return func(s *Source) {
		if len(patterns) == 0 {
			return
		}
		s.match = func(name string) bool {
			for _, p := range patterns {
				if strings.Contains(name, p) {
					return true
				}
			}
			return false
		}
	}
}

// NewSource creates a Source. Nothing is opened until Open.
func NewSource(opts ...SourceOption) *Source {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Source{
		dir:     DefaultDir,
		logger:  l,
		match:   func(string) bool { return true },
		devices: make(map[string]*device),
		pending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open checks access to the device directory, starts watching it and
// opens every event device found. Devices that cannot be opened are
// skipped with a warning.
func (s *Source) Open(ctx context.Context) error {
	if err := unix.Access(s.dir, unix.R_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", connection.ErrNoDeviceContext, s.dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: watcher: %v", connection.ErrNoDeviceContext, err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: watch %s: %v", connection.ErrNoDeviceContext, s.dir, err)
	}

	paths, err := eventNodes(s.dir)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: %v", connection.ErrNoDeviceContext, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
	for _, p := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.openLocked(p); err != nil {
			s.logger.WithError(err).Warn("skipping input device")
		}
	}
	return nil
}

// openLocked opens path and registers it. It returns nil, nil for devices
// that are filtered out or irrelevant.
func (s *Source) openLocked(path string) (*device, error) {
	if _, ok := s.devices[path]; ok {
		return nil, nil
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, &connection.DeviceError{Path: path, Op: "access", Err: err}
	}
	d, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	if d.caps.empty() || !(s.match(d.name) || s.match(path)) {
		_ = d.dev.File.Close()
		return nil, nil
	}
	if s.grab {
		if err := d.dev.Grab(); err != nil {
			s.logger.WithError(err).WithField("device", d.name).Warn("failed to grab input device")
		}
	}
	s.devices[path] = d
	return d, nil
}

func openDevice(path string) (*device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, &connection.DeviceError{Path: path, Op: "open", Err: err}
	}
	fd := int(dev.File.Fd())
	class := classify(codeSets(dev), hasProp(fd, propDirect))

	var xr, yr absRange
	xCode, yCode := evdev.ABS_X, evdev.ABS_Y
	if class.multitouch {
		xCode, yCode = evdev.ABS_MT_POSITION_X, evdev.ABS_MT_POSITION_Y
	}
	if class.touch || class.absolutePointer {
		if xr, err = absRangeOf(fd, xCode); err != nil {
			_ = dev.File.Close()
			return nil, &connection.DeviceError{Path: path, Op: "read axis range", Err: err}
		}
		if yr, err = absRangeOf(fd, yCode); err != nil {
			_ = dev.File.Close()
			return nil, &connection.DeviceError{Path: path, Op: "read axis range", Err: err}
		}
	}

	return &device{
		path: path,
		name: dev.Name,
		dev:  dev,
		fd:   fd,
		caps: class,
		dec:  newDecoder(dev.Name, class, xr, yr),
	}, nil
}

// Run announces the open devices and then reads events until ctx is done.
func (s *Source) Run(ctx context.Context, sink connection.Sink) error {
	s.mu.Lock()
	for _, d := range s.sortedLocked() {
		sink.Push(added(d))
	}
	w := s.watcher
	s.mu.Unlock()
	if w == nil {
		return connection.ErrNotSetup
	}

	for ctx.Err() == nil {
		s.drainWatcher(w, sink)
		s.retryPending(sink)

		devs, fds := s.pollSet()
		if len(fds) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				s.handleFSEvent(ev, sink)
			case err, ok := <-w.Errors:
				if ok {
					s.logger.WithError(err).Warn("input directory watch error")
				}
			}
			continue
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll input devices: %w", err)
		}
		if n == 0 {
			continue
		}
		for i, pfd := range fds {
			d := devs[i]
			switch {
			case pfd.Revents&unix.POLLIN != 0:
				if err := s.read(d, sink); err != nil {
					s.logger.WithError(err).WithField("device", d.name).Info("input device gone")
					s.remove(d.path, sink)
				}
			case pfd.Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0:
				s.remove(d.path, sink)
			}
		}
	}
	return nil
}

func (s *Source) read(d *device, sink connection.Sink) error {
	events, err := d.dev.Read()
	if err != nil {
		return err
	}
	for _, ev := range events {
		d.dec.feed(ev, sink.Push)
	}
	return nil
}

func (s *Source) pollSet() ([]*device, []unix.PollFd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	devs := s.sortedLocked()
	fds := make([]unix.PollFd, len(devs))
	for i, d := range devs {
		fds[i] = unix.PollFd{Fd: int32(d.fd), Events: unix.POLLIN}
	}
	return devs, fds
}

func (s *Source) sortedLocked() []*device {
	devs := make([]*device, 0, len(s.devices))
	for _, d := range s.devices {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].path < devs[j].path })
	return devs
}

func (s *Source) drainWatcher(w *fsnotify.Watcher, sink connection.Sink) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			s.handleFSEvent(ev, sink)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("input directory watch error")
		default:
			return
		}
	}
}

func (s *Source) handleFSEvent(ev fsnotify.Event, sink connection.Sink) {
	if !isEventNode(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create):
		s.mu.Lock()
		s.pending[ev.Name] = 0
		s.mu.Unlock()
		s.retryPending(sink)
	case ev.Has(fsnotify.Remove):
		s.mu.Lock()
		delete(s.pending, ev.Name)
		s.mu.Unlock()
		s.remove(ev.Name, sink)
	}
}

// retryPending opens hotplugged nodes. The node usually appears before its
// permissions are fixed up, so failed opens are retried a few times.
func (s *Source) retryPending(sink connection.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, attempts := range s.pending {
		d, err := s.openLocked(path)
		if err != nil {
			if attempts+1 >= openAttempts {
				s.logger.WithError(err).Warn("giving up on hotplugged input device")
				delete(s.pending, path)
				continue
			}
			s.pending[path] = attempts + 1
			continue
		}
		delete(s.pending, path)
		if d != nil {
			sink.Push(added(d))
		}
	}
}

func (s *Source) remove(path string, sink connection.Sink) {
	s.mu.Lock()
	d, ok := s.devices[path]
	delete(s.devices, path)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = d.dev.File.Close()
	d.dec.unplug(sink.Push)
	sink.Push(connection.Event{
		Type:   connection.EventDeviceRemoved,
		Device: d.name,
		Caps:   d.caps.capabilities(),
	})
}

// SetGrab takes or releases exclusive access to every open device.
func (s *Source) SetGrab(grab bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grab = grab
	var result *multierror.Error
	for _, d := range s.sortedLocked() {
		var err error
		if grab {
			err = d.dev.Grab()
		} else {
			err = d.dev.Release()
		}
		if err != nil {
			result = multierror.Append(result, &connection.DeviceError{Path: d.path, Op: "grab", Err: err})
		}
	}
	return result.ErrorOrNil()
}

// Close stops watching and closes every device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result *multierror.Error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.watcher = nil
	}
	for path, d := range s.devices {
		if err := d.dev.File.Close(); err != nil {
			result = multierror.Append(result, &connection.DeviceError{Path: path, Op: "close", Err: err})
		}
		delete(s.devices, path)
	}
	return result.ErrorOrNil()
}

func added(d *device) connection.Event {
	return connection.Event{
		Type:   connection.EventDeviceAdded,
		Device: d.name,
		Caps:   d.caps.capabilities(),
	}
}

func isEventNode(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "event")
}

func eventNodes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if isEventNode(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
