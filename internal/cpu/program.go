package cpu

import (
	"fmt"

	"github.com/gogpu/rast3d/internal/compute"
)

type kernel struct {
	sig  compute.Signature
	host compute.HostKernel
}

func (k *kernel) Signature() *compute.Signature { return &k.sig }

type program struct {
	label   string
	kernels map[string]*kernel
	dev     *Device
}

func (p *program) Kernel(entry string) (compute.Kernel, bool) {
	k, ok := p.kernels[entry]
	if !ok {
		return nil, false
	}
	return k, true
}

func (p *program) Release() {
	p.dev.mu.Lock()
	if p.dev.program == p {
		p.dev.program = nil
	}
	p.dev.mu.Unlock()
}

// LoadProgram binds the Go implementations of desc. Every signature must
// have a host kernel using exactly its roles.
func (d *Device) LoadProgram(desc compute.ProgramDesc) (compute.Program, error) {
	if d.closed.Load() {
		return nil, compute.ErrClosed
	}
	for i := range desc.Signatures {
		if err := desc.Signatures[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := compute.ValidateHost(desc.Signatures, desc.Host); err != nil {
		return nil, err
	}

	p := &program{label: desc.Label, kernels: make(map[string]*kernel, len(desc.Signatures)), dev: d}
	for _, sig := range desc.Signatures {
		p.kernels[sig.Entry] = &kernel{sig: sig, host: desc.Host[sig.Entry]}
	}

	d.mu.Lock()
	d.program = p
	d.mu.Unlock()

	slogger().Debug("cpu: program loaded", "label", desc.Label, "kernels", len(p.kernels))
	return p, nil
}

// Dispatch checks the bindings and enqueues the kernel. Buffers are
// resolved now, so destroying a buffer afterwards does not affect the
// dispatch.
func (d *Device) Dispatch(k compute.Kernel, b compute.Bindings, grid compute.Grid) error {
	kk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("cpu: dispatch: kernel %T not created by this device", k)
	}
	d.mu.Lock()
	loaded := d.program != nil && d.program.kernels[kk.sig.Entry] == kk
	d.mu.Unlock()
	if !loaded {
		return fmt.Errorf("cpu: dispatch %s: %w", kk.sig.Entry, compute.ErrNoProgram)
	}
	if err := b.Check(&kk.sig); err != nil {
		return err
	}

	args := &compute.HostArgs{Grid: grid, Buffers: make(map[compute.Role][]uint32, len(b))}
	for _, sl := range kk.sig.Slots {
		buf, err := d.lookup(b[sl.Role])
		if err != nil {
			return fmt.Errorf("cpu: dispatch %s.%s: %w", kk.sig.Entry, sl.Role, err)
		}
		if !buf.usage.Has(sl.Access.RequiredUsage()) {
			return &compute.BindingError{
				Entry: kk.sig.Entry, Role: sl.Role,
				Reason: fmt.Sprintf("buffer %s lacks usage for %s binding", buf.label, sl.Access),
			}
		}
		args.Buffers[sl.Role] = buf.words
	}

	if grid.Empty() {
		return nil
	}
	n := grid.Count()
	slogger().Debug("cpu: dispatch", "kernel", kk.sig.Entry, "invocations", n)
	return d.enqueue(command{
		name: "dispatch " + kk.sig.Entry,
		run: func() error {
			if kk.host.Setup != nil {
				kk.host.Setup(args)
			}
			err := d.pool.For(n, minGrain, func(begin, end uint64) {
				kk.host.Run(args, begin, end)
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %w", compute.ErrDeviceLost, kk.sig.Entry, err)
			}
			return nil
		},
	})
}
