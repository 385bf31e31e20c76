// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/rast3d/internal/compute"
)

// Declaration is a resource variable declared in kernel source.
type Declaration struct {
	Group   uint32
	Binding uint32
	Name    string
	Access  compute.Access
}

// EntryPoint is a compute entry point declared in kernel source.
type EntryPoint struct {
	Name      string
	Workgroup [3]uint32
}

// Scan parses and lowers WGSL with naga and reports the bound resource
// variables and compute entry points of the resulting module.
// Parse and lowering failures are returned as *compute.BuildError.
func Scan(src string) ([]Declaration, []EntryPoint, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, nil, &compute.BuildError{Label: "kernels", Log: err.Error(), Err: err}
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, nil, &compute.BuildError{Label: "kernels", Log: err.Error(), Err: err}
	}

	var decls []Declaration
	for i := range module.GlobalVariables {
		gv := &module.GlobalVariables[i]
		if gv.Binding == nil {
			continue
		}
		access, err := globalAccess(gv)
		if err != nil {
			return nil, nil, err
		}
		decls = append(decls, Declaration{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Name:    gv.Name,
			Access:  access,
		})
	}

	var entries []EntryPoint
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Stage != ir.StageCompute {
			continue
		}
		entries = append(entries, EntryPoint{Name: ep.Name, Workgroup: ep.Workgroup})
	}
	return decls, entries, nil
}

func globalAccess(gv *ir.GlobalVariable) (compute.Access, error) {
	switch gv.Space {
	case ir.SpaceUniform:
		return compute.AccessUniform, nil
	case ir.SpaceStorage:
		if gv.Access == ir.StorageRead {
			return compute.AccessRead, nil
		}
		return compute.AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("kernels: %s: unsupported address space %d", gv.Name, gv.Space)
	}
}

// Validate checks every signature against the declarations in src:
// the entry point exists with the declared workgroup size, and every slot
// names a group 0 variable at the same binding with the same access.
// Any mismatch is returned as a *compute.BindingError.
func Validate(src string, sigs []compute.Signature) error {
	decls, entries, err := Scan(src)
	if err != nil {
		return err
	}

	byBinding := make(map[uint32]Declaration, len(decls))
	for _, d := range decls {
		if d.Group != 0 {
			continue
		}
		if prev, dup := byBinding[d.Binding]; dup {
			return &compute.BindingError{
				Reason: fmt.Sprintf("binding %d declared twice (%s, %s)", d.Binding, prev.Name, d.Name),
			}
		}
		byBinding[d.Binding] = d
	}
	entryByName := make(map[string]EntryPoint, len(entries))
	for _, e := range entries {
		entryByName[e.Name] = e
	}

	for i := range sigs {
		sig := &sigs[i]
		if err := sig.Validate(); err != nil {
			return err
		}
		ep, ok := entryByName[sig.Entry]
		if !ok {
			return &compute.BindingError{Entry: sig.Entry, Reason: "entry point not found in source"}
		}
		if ep.Workgroup != sig.Workgroup {
			return &compute.BindingError{
				Entry:  sig.Entry,
				Reason: fmt.Sprintf("workgroup size %v, source declares %v", sig.Workgroup, ep.Workgroup),
			}
		}
		for _, sl := range sig.Slots {
			d, ok := byBinding[sl.Binding]
			if !ok {
				return &compute.BindingError{
					Entry: sig.Entry, Role: sl.Role,
					Reason: fmt.Sprintf("binding %d not declared in source", sl.Binding),
				}
			}
			if d.Name != string(sl.Role) {
				return &compute.BindingError{
					Entry: sig.Entry, Role: sl.Role,
					Reason: fmt.Sprintf("binding %d is %q in source", sl.Binding, d.Name),
				}
			}
			if d.Access != sl.Access {
				return &compute.BindingError{
					Entry: sig.Entry, Role: sl.Role,
					Reason: fmt.Sprintf("access %s, source declares %s", sl.Access, d.Access),
				}
			}
		}
	}
	return nil
}
