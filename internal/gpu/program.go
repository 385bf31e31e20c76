// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rast3d/internal/compute"
)

type kernel struct {
	sig        compute.Signature
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (k *kernel) Signature() *compute.Signature { return &k.sig }

type program struct {
	dev     *Device
	label   string
	module  hal.ShaderModule
	kernels map[string]*kernel
}

func (p *program) Kernel(entry string) (compute.Kernel, bool) {
	k, ok := p.kernels[entry]
	if !ok {
		return nil, false
	}
	return k, true
}

// Release destroys the pipelines after submitting work that uses them.
func (p *program) Release() {
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program != p || d.closed {
		return
	}
	if len(d.pending) > 0 {
		if err := d.flushLocked(DefaultFenceTimeout); err != nil {
			slogger().Warn("gpu: flush before program release failed", "err", err)
		}
	}
	p.destroyLocked()
	d.program = nil
}

func (p *program) destroyLocked() {
	dev := p.dev.device
	if dev == nil {
		return
	}
	for _, k := range p.kernels {
		if k.pipeline != nil {
			dev.DestroyComputePipeline(k.pipeline)
		}
		if k.pipeLayout != nil {
			dev.DestroyPipelineLayout(k.pipeLayout)
		}
		if k.bindLayout != nil {
			dev.DestroyBindGroupLayout(k.bindLayout)
		}
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
	}
	p.kernels = nil
	p.module = nil
}

// CompileSPIRV compiles WGSL source to SPIR-V words. A failure is returned
// as a *compute.BuildError carrying the full compiler message.
func CompileSPIRV(label, src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, &compute.BuildError{Label: label, Log: err.Error(), Err: err}
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func bindGroupLayoutEntries(sig *compute.Signature) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, len(sig.Slots))
	for i, sl := range sig.Slots {
		var typ gputypes.BufferBindingType
		switch sl.Access {
		case compute.AccessUniform:
			typ = gputypes.BufferBindingTypeUniform
		case compute.AccessRead:
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		default:
			typ = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    sl.Binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}
	return entries
}

// LoadProgram compiles desc.Source and creates one pipeline per signature.
// All-or-nothing: on failure every object created so far is destroyed.
func (d *Device) LoadProgram(desc compute.ProgramDesc) (compute.Program, error) {
	spirv, err := CompileSPIRV(desc.Label, desc.Source)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrClosed
	}
	if d.program != nil {
		if len(d.pending) > 0 {
			if err := d.flushLocked(DefaultFenceTimeout); err != nil {
				return nil, err
			}
		}
		d.program.destroyLocked()
		d.program = nil
	}

	p := &program{dev: d, label: desc.Label, kernels: make(map[string]*kernel, len(desc.Signatures))}
	if err := p.build(spirv, desc.Signatures); err != nil {
		p.destroyLocked()
		return nil, err
	}
	d.program = p
	slogger().Debug("gpu: program loaded", "label", desc.Label, "kernels", len(p.kernels))
	return p, nil
}

func (p *program) build(spirv []uint32, sigs []compute.Signature) error {
	dev := p.dev.device
	module, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return &compute.BuildError{Label: p.label, Log: err.Error(), Err: err}
	}
	p.module = module

	for _, sig := range sigs {
		if err := sig.Validate(); err != nil {
			return err
		}
		k := &kernel{sig: sig}
		p.kernels[sig.Entry] = k

		k.bindLayout, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   sig.Entry + "_bind_layout",
			Entries: bindGroupLayoutEntries(&sig),
		})
		if err != nil {
			return fmt.Errorf("gpu: create bind group layout %s: %w", sig.Entry, err)
		}
		k.pipeLayout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            sig.Entry + "_pipe_layout",
			BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
		})
		if err != nil {
			return fmt.Errorf("gpu: create pipeline layout %s: %w", sig.Entry, err)
		}
		k.pipeline, err = dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   sig.Entry,
			Layout:  k.pipeLayout,
			Compute: hal.ComputeState{Module: p.module, EntryPoint: sig.Entry},
		})
		if err != nil {
			return &compute.BuildError{Label: sig.Entry, Log: err.Error(), Err: err}
		}
	}
	return nil
}
