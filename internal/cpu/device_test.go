package cpu

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/rast3d/internal/compute"
)

// testProgram has one kernel "add" that adds params[0] to every word of data.
func testProgram(run func(a *compute.HostArgs, begin, end uint64)) compute.ProgramDesc {
	if run == nil {
		run = func(a *compute.HostArgs, begin, end uint64) {
			add := a.Words("params")[0]
			data := a.Words("data")
			for i := begin; i < end; i++ {
				data[i] += add
			}
		}
	}
	return compute.ProgramDesc{
		Label: "test",
		Signatures: []compute.Signature{{
			Entry: "add",
			Slots: []compute.Slot{
				{Role: "params", Binding: 0, Access: compute.AccessUniform},
				{Role: "data", Binding: 1, Access: compute.AccessReadWrite},
			},
			Workgroup: [3]uint32{64, 1, 1},
		}},
		Host: map[string]compute.HostKernel{
			"add": {Roles: []compute.Role{"params", "data"}, Run: run},
		},
	}
}

func u32s(vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d := New(WithWorkers(4))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func mustBuffer(t *testing.T, d *Device, desc compute.BufferDesc) compute.BufferID {
	t.Helper()
	id, err := d.CreateBuffer(desc)
	if err != nil {
		t.Fatalf("CreateBuffer(%s) = %v", desc.Label, err)
	}
	return id
}

func TestDevice_Kind(t *testing.T) {
	d := newTestDevice(t)
	if d.Kind() != compute.KindCPU {
		t.Errorf("Kind() = %v, want cpu", d.Kind())
	}
	if d.Name() == "" {
		t.Error("Name() is empty")
	}
}

func TestDevice_WriteRead(t *testing.T) {
	d := newTestDevice(t)
	id := mustBuffer(t, d, compute.BufferDesc{
		Label: "buf", Size: 16,
		Usage:    compute.UsageStorage | compute.UsageCopyDst | compute.UsageCopySrc,
		Contents: u32s(1, 2, 3, 4),
	})

	if err := d.WriteBuffer(id, 4, u32s(20, 30)); err != nil {
		t.Fatalf("WriteBuffer() = %v", err)
	}
	got := make([]byte, 16)
	if err := d.ReadBuffer(context.Background(), id, 0, got); err != nil {
		t.Fatalf("ReadBuffer() = %v", err)
	}
	want := u32s(1, 20, 30, 4)
	if string(got) != string(want) {
		t.Errorf("ReadBuffer() = %v, want %v", got, want)
	}
}

func TestDevice_WriteOutOfRange(t *testing.T) {
	d := newTestDevice(t)
	id := mustBuffer(t, d, compute.BufferDesc{Label: "buf", Size: 16, Usage: compute.UsageStorage})
	if err := d.WriteBuffer(id, 8, make([]byte, 16)); !errors.Is(err, compute.ErrOutOfRange) {
		t.Errorf("WriteBuffer(past end) = %v, want ErrOutOfRange", err)
	}
	if err := d.WriteBuffer(id, 2, make([]byte, 4)); err == nil {
		t.Error("WriteBuffer(unaligned) = nil, want error")
	}
}

func TestDevice_UnknownBuffer(t *testing.T) {
	d := newTestDevice(t)
	if err := d.WriteBuffer(99, 0, u32s(1)); !errors.Is(err, compute.ErrUnknownBuffer) {
		t.Errorf("WriteBuffer(unknown) = %v, want ErrUnknownBuffer", err)
	}
	id := mustBuffer(t, d, compute.BufferDesc{Label: "buf", Size: 16, Usage: compute.UsageStorage})
	d.DestroyBuffer(id)
	if err := d.ReadBuffer(context.Background(), id, 0, make([]byte, 4)); !errors.Is(err, compute.ErrUnknownBuffer) {
		t.Errorf("ReadBuffer(destroyed) = %v, want ErrUnknownBuffer", err)
	}
}

func TestDevice_ContentsTooLarge(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateBuffer(compute.BufferDesc{Label: "big", Size: 16, Contents: make([]byte, 32)})
	if err == nil {
		t.Error("CreateBuffer(contents > size) = nil, want error")
	}
}

func TestDevice_DispatchInOrder(t *testing.T) {
	d := newTestDevice(t)
	prog, err := d.LoadProgram(testProgram(nil))
	if err != nil {
		t.Fatalf("LoadProgram() = %v", err)
	}
	k, ok := prog.Kernel("add")
	if !ok {
		t.Fatal("Kernel(add) not found")
	}

	const n = 1000
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform | compute.UsageCopyDst})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 4 * n, Usage: compute.UsageStorage | compute.UsageCopySrc})
	b := compute.Bindings{"params": params, "data": data}

	// write(1) dispatch write(10) dispatch: every element must be 11.
	for _, add := range []uint32{1, 10} {
		if err := d.WriteBuffer(params, 0, u32s(add)); err != nil {
			t.Fatal(err)
		}
		if err := d.Dispatch(k, b, compute.Grid1D(n)); err != nil {
			t.Fatalf("Dispatch() = %v", err)
		}
	}

	got := make([]byte, 4*n)
	if err := d.ReadBuffer(context.Background(), data, 0, got); err != nil {
		t.Fatalf("ReadBuffer() = %v", err)
	}
	for i := range n {
		if v := binary.LittleEndian.Uint32(got[i*4:]); v != 11 {
			t.Fatalf("data[%d] = %d, want 11", i, v)
		}
	}
}

func TestDevice_DispatchBindingMismatch(t *testing.T) {
	d := newTestDevice(t)
	prog, err := d.LoadProgram(testProgram(nil))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})

	tests := []struct {
		name string
		b    compute.Bindings
	}{
		{"missing", compute.Bindings{"params": params}},
		{"extra", compute.Bindings{"params": params, "data": data, "more": data}},
		{"wrong usage", compute.Bindings{"params": data, "data": data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var be *compute.BindingError
			if err := d.Dispatch(k, tt.b, compute.Grid1D(4)); !errors.As(err, &be) {
				t.Errorf("Dispatch() = %v, want *BindingError", err)
			}
		})
	}
}

func TestDevice_LoadProgramRejectsMissingHost(t *testing.T) {
	d := newTestDevice(t)
	desc := testProgram(nil)
	desc.Host = nil
	var be *compute.BindingError
	if _, err := d.LoadProgram(desc); !errors.As(err, &be) {
		t.Errorf("LoadProgram() = %v, want *BindingError", err)
	}
}

func TestDevice_DispatchAfterRelease(t *testing.T) {
	d := newTestDevice(t)
	prog, err := d.LoadProgram(testProgram(nil))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	prog.Release()
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})
	err = d.Dispatch(k, compute.Bindings{"params": params, "data": data}, compute.Grid1D(4))
	if !errors.Is(err, compute.ErrNoProgram) {
		t.Errorf("Dispatch() after Release = %v, want ErrNoProgram", err)
	}
}

func TestDevice_FinishTimeout(t *testing.T) {
	d := newTestDevice(t)
	release := make(chan struct{})
	prog, err := d.LoadProgram(testProgram(func(_ *compute.HostArgs, _, _ uint64) {
		<-release
	}))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})
	if err := d.Dispatch(k, compute.Bindings{"params": params, "data": data}, compute.Grid1D(1)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = d.Finish(ctx)
	if !errors.Is(err, compute.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Finish() = %v, want ErrTimeout wrapping DeadlineExceeded", err)
	}

	close(release)
	if err := d.Finish(context.Background()); err != nil {
		t.Errorf("Finish() after release = %v", err)
	}
}

func TestDevice_FinishCanceled(t *testing.T) {
	d := newTestDevice(t)
	release := make(chan struct{})
	prog, err := d.LoadProgram(testProgram(func(_ *compute.HostArgs, _, _ uint64) {
		<-release
	}))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})
	if err := d.Dispatch(k, compute.Bindings{"params": params, "data": data}, compute.Grid1D(1)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err = d.Finish(ctx)
	if !errors.Is(err, context.Canceled) || errors.Is(err, compute.ErrTimeout) {
		t.Errorf("Finish() = %v, want context.Canceled without ErrTimeout", err)
	}

	// Already canceled before the wait starts.
	if err := d.Finish(ctx); !errors.Is(err, context.Canceled) || errors.Is(err, compute.ErrTimeout) {
		t.Errorf("Finish(canceled) = %v, want context.Canceled without ErrTimeout", err)
	}

	close(release)
	if err := d.Finish(context.Background()); err != nil {
		t.Errorf("Finish() after release = %v", err)
	}
}

func TestDevice_SetupOncePerDispatch(t *testing.T) {
	d := newTestDevice(t)
	var setups, runs atomic.Int32
	desc := testProgram(func(a *compute.HostArgs, begin, end uint64) {
		add := a.State.(uint32)
		data := a.Words("data")
		for i := begin; i < end; i++ {
			data[i] += add
		}
		runs.Add(1)
	})
	hk := desc.Host["add"]
	hk.Setup = func(a *compute.HostArgs) {
		setups.Add(1)
		a.State = 2 * a.Words("params")[0]
	}
	desc.Host["add"] = hk

	prog, err := d.LoadProgram(desc)
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")

	const n = 8 * minGrain
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform, Contents: u32s(3)})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 4 * n, Usage: compute.UsageStorage | compute.UsageCopySrc})
	b := compute.Bindings{"params": params, "data": data}
	for range 2 {
		if err := d.Dispatch(k, b, compute.Grid1D(n)); err != nil {
			t.Fatal(err)
		}
	}

	got := make([]byte, 4*n)
	if err := d.ReadBuffer(context.Background(), data, 0, got); err != nil {
		t.Fatal(err)
	}
	for i := range n {
		if v := binary.LittleEndian.Uint32(got[i*4:]); v != 12 {
			t.Fatalf("data[%d] = %d, want 12", i, v)
		}
	}
	if s := setups.Load(); s != 2 {
		t.Errorf("Setup ran %d times, want once per dispatch (2)", s)
	}
	if r := runs.Load(); r <= 2 {
		t.Errorf("Run ran %d times, want the grid split into chunks", r)
	}
}

func TestDevice_KernelPanicReported(t *testing.T) {
	d := newTestDevice(t)
	prog, err := d.LoadProgram(testProgram(func(_ *compute.HostArgs, _, _ uint64) {
		panic("kernel fault")
	}))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})
	if err := d.Dispatch(k, compute.Bindings{"params": params, "data": data}, compute.Grid1D(4)); err != nil {
		t.Fatal(err)
	}
	if err := d.Finish(context.Background()); !errors.Is(err, compute.ErrDeviceLost) {
		t.Errorf("Finish() after panicking kernel = %v, want ErrDeviceLost", err)
	}
	// The error is reported once; the device keeps working.
	if err := d.Finish(context.Background()); err != nil {
		t.Errorf("second Finish() = %v, want nil", err)
	}
}

func TestDevice_EmptyGridSkipped(t *testing.T) {
	d := newTestDevice(t)
	called := false
	prog, err := d.LoadProgram(testProgram(func(_ *compute.HostArgs, _, _ uint64) { called = true }))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := prog.Kernel("add")
	params := mustBuffer(t, d, compute.BufferDesc{Label: "params", Size: 16, Usage: compute.UsageUniform})
	data := mustBuffer(t, d, compute.BufferDesc{Label: "data", Size: 16, Usage: compute.UsageStorage})
	if err := d.Dispatch(k, compute.Bindings{"params": params, "data": data}, compute.Grid1D(0)); err != nil {
		t.Fatalf("Dispatch(empty) = %v", err)
	}
	if err := d.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("kernel ran for an empty grid")
	}
}

func TestDevice_Close(t *testing.T) {
	d := New()
	if err := d.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := d.CreateBuffer(compute.BufferDesc{Size: 4}); !errors.Is(err, compute.ErrClosed) {
		t.Errorf("CreateBuffer() after Close = %v, want ErrClosed", err)
	}
	if err := d.Finish(context.Background()); !errors.Is(err, compute.ErrClosed) {
		t.Errorf("Finish() after Close = %v, want ErrClosed", err)
	}
}
