// Package power owns the output blank state and the panel backlight.
//
// The backlight is driven through the sysfs backlight class: the
// filesystem handed to the Manager is rooted at /sys/class/backlight in
// production and at an in-memory tree in tests.
package power

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
)

// SysfsBacklightDir is the sysfs backlight class directory.
const SysfsBacklightDir = "/sys/class/backlight"

// Manager tracks whether the outputs are blanked. Blanking drops the
// backlight to zero; unblanking restores max_brightness.
//
// Manager is safe for concurrent use. Observers run without the lock held.
type Manager struct {
	mu          sync.Mutex
	fs          billy.Filesystem
	device      string
	logger      logrus.FieldLogger
	initialized bool
	blank       bool
	hasLight    bool
	max         int
	observers   []func(blank bool)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFilesystem sets the filesystem holding the backlight class. The
// default is the host's /sys/class/backlight.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(m *Manager) {
		if fs != nil {
			m.fs = fs
		}
	}
}

// NewManager creates a manager for the named backlight device, e.g.
// "intel_backlight". An empty name means no backlight; blanking then only
// changes state and notifies observers.
//
// Outputs start blanked; Init turns them on.
func NewManager(device string, opts ...Option) *Manager {
	l := logrus.New()
	l.SetOutput(io.Discard)
	m := &Manager{
		device: device,
		logger: l,
		blank:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fs == nil {
		m.fs = osfs.New(SysfsBacklightDir)
	}
	return m
}

// Init probes the backlight and unblanks the outputs. A missing or
// unreadable backlight is logged and otherwise ignored.
func (m *Manager) Init() error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	if err := m.probeLocked(); err != nil {
		m.logger.WithError(err).WithField("device", m.device).Warn("backlight unavailable")
	}
	m.mu.Unlock()

	if m.IsBacklightOff() {
		m.ToggleBlankOutput()
	}
	return nil
}

// IsBacklightOff reports whether the outputs are blanked.
func (m *Manager) IsBacklightOff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blank
}

// HasBacklight reports whether a backlight device was found.
func (m *Manager) HasBacklight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasLight
}

// MaxBrightness returns the brightness written when unblanking.
func (m *Manager) MaxBrightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

// ToggleBlankOutput flips the blank state. It does nothing before Init.
func (m *Manager) ToggleBlankOutput() {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return
	}
	m.blank = !m.blank
	blank := m.blank
	if err := m.writeBrightnessLocked(); err != nil {
		m.logger.WithError(err).WithField("device", m.device).Error("set backlight brightness")
	}
	observers := make([]func(bool), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	m.logger.WithField("blank", blank).Info("output blank state changed")
	for _, fn := range observers {
		fn(blank)
	}
}

// RequestDPMS handles a power mode request: on unblanks, off blanks.
func (m *Manager) RequestDPMS(on bool) {
	if on == m.IsBacklightOff() {
		m.ToggleBlankOutput()
	}
}

// OnBlankChanged registers fn to run after each blank state change.
func (m *Manager) OnBlankChanged(fn func(blank bool)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Close blanks the outputs if they are on.
func (m *Manager) Close() error {
	if !m.IsBacklightOff() {
		m.ToggleBlankOutput()
	}
	return nil
}

func (m *Manager) probeLocked() error {
	if m.device == "" {
		return ErrNoBacklight
	}
	maxBrightness, err := readInt(m.fs, path.Join(m.device, "max_brightness"))
	if err != nil {
		return err
	}
	m.max = maxBrightness
	m.hasLight = true
	return nil
}

func (m *Manager) writeBrightnessLocked() error {
	if !m.hasLight {
		return nil
	}
	value := m.max
	if m.blank {
		value = 0
	}
	name := path.Join(m.device, "brightness")
	if err := util.WriteFile(m.fs, name, []byte(strconv.Itoa(value)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func readInt(fs billy.Filesystem, name string) (int, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s: %q", ErrInvalidBrightness, name, strings.TrimSpace(string(data)))
	}
	return v, nil
}

// Devices lists the backlight devices present in fs.
func Devices(fs billy.Filesystem) ([]string, error) {
	entries, err := fs.ReadDir("/")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
