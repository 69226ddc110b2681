package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFilter logs every event it sees and optionally consumes them.
type recordingFilter struct {
	BaseFilter
	name     string
	consume  bool
	log      *[]string
	onKey    func()
	canceled int
}

func (f *recordingFilter) Name() string { return f.name }

func (f *recordingFilter) KeyEvent(KeyEvent) bool {
	*f.log = append(*f.log, f.name+":key")
	if f.onKey != nil {
		f.onKey()
	}
	return f.consume
}

func (f *recordingFilter) TouchDown(TouchEvent) bool {
	*f.log = append(*f.log, f.name+":touch_down")
	return f.consume
}

func (f *recordingFilter) TouchCanceled() {
	f.canceled++
}

func newRecordingFilter(name string, consume bool, log *[]string) *recordingFilter {
	return &recordingFilter{name: name, consume: consume, log: log}
}

func TestFilterChain_PrependRunsFirst(t *testing.T) {
	var log []string
	c := NewFilterChain()
	appended := newRecordingFilter("appended", false, &log)
	prepended := newRecordingFilter("prepended", false, &log)

	c.Append(appended)
	c.Prepend(prepended)

	assert.False(t, c.DispatchKey(KeyEvent{Key: 30, State: KeyPressed}))
	assert.Equal(t, []string{"prepended:key", "appended:key"}, log)
}

func TestFilterChain_HandledStopsPropagation(t *testing.T) {
	var log []string
	c := NewFilterChain()
	c.Append(newRecordingFilter("first", true, &log))
	c.Append(newRecordingFilter("second", false, &log))

	assert.True(t, c.DispatchTouchDown(TouchEvent{ID: 1}))
	assert.Equal(t, []string{"first:touch_down"}, log)
}

func TestFilterChain_AppendOrder(t *testing.T) {
	var log []string
	c := NewFilterChain()
	a := newRecordingFilter("a", false, &log)
	b := newRecordingFilter("b", false, &log)
	p := newRecordingFilter("p", false, &log)

	c.Append(a)
	c.Append(b)
	c.Prepend(p)
	c.Append(a) // already installed

	require.Equal(t, 3, c.Len())
	assert.Equal(t, []Filter{p, a, b}, c.Filters())
}

func TestFilterChain_Remove(t *testing.T) {
	var log []string
	c := NewFilterChain()
	a := newRecordingFilter("a", false, &log)
	b := newRecordingFilter("b", false, &log)
	c.Append(a)
	c.Append(b)

	c.Remove(a)
	c.Remove(a)
	c.Remove(nil)

	assert.Equal(t, []Filter{b}, c.Filters())
}

func TestFilterChain_MutationDuringDispatchIsDeferred(t *testing.T) {
	var log []string
	c := NewFilterChain()
	late := newRecordingFilter("late", false, &log)
	first := newRecordingFilter("first", false, &log)
	second := newRecordingFilter("second", false, &log)

	first.onKey = func() {
		assert.True(t, c.Dispatching())
		c.Prepend(late)
		c.Remove(second)
		assert.Equal(t, 2, c.Len(), "chain must not change mid-dispatch")
	}
	c.Append(first)
	c.Append(second)

	c.DispatchKey(KeyEvent{})
	assert.Equal(t, []string{"first:key", "second:key"}, log)
	assert.False(t, c.Dispatching())
	assert.Equal(t, []Filter{late, first}, c.Filters())

	log = nil
	first.onKey = nil
	c.DispatchKey(KeyEvent{})
	assert.Equal(t, []string{"late:key", "first:key"}, log)
}

type panickingFilter struct {
	BaseFilter
}

func (panickingFilter) KeyEvent(KeyEvent) bool {
	panic("boom")
}

func TestFilterChain_PanicIsNotHandled(t *testing.T) {
	var log []string
	c := NewFilterChain(WithChainMetrics(NewMetrics(nil)))
	c.Append(&panickingFilter{})
	c.Append(newRecordingFilter("after", false, &log))

	assert.False(t, c.DispatchKey(KeyEvent{}))
	assert.Equal(t, []string{"after:key"}, log)
}

func TestFilterChain_NotifyTouchCanceled(t *testing.T) {
	var log []string
	c := NewFilterChain()
	a := newRecordingFilter("a", true, &log)
	b := newRecordingFilter("b", true, &log)
	c.Append(a)
	c.Append(b)

	c.NotifyTouchCanceled()

	assert.Equal(t, 1, a.canceled)
	assert.Equal(t, 1, b.canceled, "cancel reaches every filter")
}

func TestFilterName(t *testing.T) {
	var log []string
	assert.Equal(t, "x", FilterName(newRecordingFilter("x", false, &log)))
	assert.Equal(t, "anonymous", FilterName(&panickingFilter{}))
}
