package editor

import (
	"math"
	"strconv"
)

// Enabler is an interface that defines a single Enabled() method, which is used
// by the UI to check if an Action/Bool/Float is enabled or not.
type Enabler interface {
	Enabled() bool
}

// Action

type (
	// Action describes a user action that can be performed on the model by
	// calling Do(). Action advertises whether it is enabled, so the UI can
	// gray out buttons. If the Doer does not implement Enabler, the action is
	// always allowed.
	Action struct {
		doer Doer
	}

	Doer interface {
		Do()
	}
)

func MakeAction(doer Doer) Action { return Action{doer: doer} }

func (a Action) Do() {
	e, ok := a.doer.(Enabler)
	if ok && !e.Enabled() {
		return
	}
	if a.doer != nil {
		a.doer.Do()
	}
}

func (a Action) Enabled() bool {
	if a.doer == nil {
		return false // no doer, not allowed
	}
	e, ok := a.doer.(Enabler)
	if !ok {
		return true
	}
	return e.Enabled()
}

// Bool

type (
	Bool struct {
		value BoolValue
	}

	BoolValue interface {
		Value() bool
		SetValue(bool)
	}
)

func MakeBool(value BoolValue) Bool { return Bool{value: value} }
func (v Bool) Toggle()              { v.SetValue(!v.Value()) }

func (v Bool) SetValue(value bool) (changed bool) {
	if !v.Enabled() || v.Value() == value {
		return false
	}
	v.value.SetValue(value)
	return true
}

func (v Bool) Value() bool {
	if v.value == nil {
		return false
	}
	return v.value.Value()
}

func (v Bool) Enabled() bool {
	if v.value == nil {
		return false
	}
	e, ok := v.value.(Enabler)
	if !ok {
		return true
	}
	return e.Enabled()
}

// Float

type (
	// Float is a continuous value of the model, e.g. tempo or zoom. Float
	// clamps every new value to the range of the underlying FloatValue and
	// does not call SetValue when the value would not change.
	Float struct {
		value FloatValue
	}

	FloatValue interface {
		Value() float64
		SetValue(float64) (changed bool)
		Range() FloatRange
	}

	FloatRange struct {
		Min, Max float64
	}
)

func MakeFloat(value FloatValue) Float { return Float{value} }

func (v Float) Add(delta float64) (changed bool) {
	return v.SetValue(v.Value() + delta)
}

func (v Float) SetValue(value float64) (changed bool) {
	if v.value == nil || math.IsNaN(value) {
		return false
	}
	value = v.Range().Clamp(value)
	if value == v.Value() {
		return false
	}
	return v.value.SetValue(value)
}

func (v Float) Value() float64 {
	if v.value == nil {
		return 0
	}
	return v.value.Value()
}

func (v Float) Range() FloatRange {
	if v.value == nil {
		return FloatRange{}
	}
	return v.value.Range()
}

func (v Float) String() string {
	return strconv.FormatFloat(v.Value(), 'f', -1, 64)
}

func (r FloatRange) Clamp(value float64) float64 {
	return max(min(value, r.Max), r.Min)
}
