package mockprogress

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/romshelf/romshelf/progress"
)

// MockSink is a gomock double for progress.Sink, written by hand in the
// shape mockgen produces for a one-method interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkRecorder
}

// MockSinkRecorder records expected calls on a MockSink.
type MockSinkRecorder struct {
	mock *MockSink
}

// NewMockSink returns a MockSink controlled by ctrl.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	m := &MockSink{ctrl: ctrl}
	m.recorder = &MockSinkRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkRecorder {
	return m.recorder
}

// Emit implements progress.Sink.
func (m *MockSink) Emit(ev progress.Event) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Emit", ev)
}

// Emit records an expected Emit call.
func (mr *MockSinkRecorder) Emit(ev any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Emit", reflect.TypeOf((*MockSink)(nil).Emit), ev)
}
