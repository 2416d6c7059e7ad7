//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// jobQueue drains the promise job queue of one VM. modernc.org/quickjs
// never runs JS_ExecutePendingJob itself, so the C runtime handle is dug
// out of the VM once and the libquickjs entry point is called directly.
type jobQueue struct {
	rt  uintptr
	tls *libc.TLS
}

// newJobQueue locates the runtime behind vm. ok is false if the VM layout
// is not the one expected (modernc.org/quickjs v0.17.x):
//
//	VM{ cContext uintptr; ...; runtime *runtime }
//	runtime{ cRuntime uintptr; tls *libc.TLS }
func newJobQueue(vm *quickjs.VM) (q jobQueue, ok bool) {
	runtimeField := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !runtimeField.IsValid() || runtimeField.IsNil() {
		return jobQueue{}, false
	}
	rt := reflect.NewAt(runtimeField.Type().Elem(), unsafe.Pointer(runtimeField.Pointer())).Elem()

	handle := rt.FieldByName("cRuntime")
	tls := rt.FieldByName("tls")
	if !handle.IsValid() || !tls.IsValid() || tls.IsNil() {
		return jobQueue{}, false
	}
	return jobQueue{
		rt:  uintptr(handle.Uint()),
		tls: (*libc.TLS)(unsafe.Pointer(tls.Pointer())),
	}, true
}

// drain runs jobs until the queue is empty. A job that throws does not
// stop the drain; failed counts them.
func (q jobQueue) drain() (ran, failed int) {
	if q.tls == nil {
		return 0, 0
	}
	for {
		switch ret := lib.XJS_ExecutePendingJob(q.tls, q.rt, 0); {
		case ret > 0:
			ran++
		case ret < 0:
			failed++
		default:
			return ran, failed
		}
	}
}
