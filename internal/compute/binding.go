// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"fmt"
	"slices"
	"strings"
)

// Role names the logical meaning of a kernel argument, for example the
// color buffer or the projection matrix. Roles replace positional kernel
// argument indices.
type Role string

// Access is how a kernel accesses a bound buffer.
type Access uint8

const (
	// AccessUniform is a read-only uniform buffer.
	AccessUniform Access = iota
	// AccessRead is a read-only storage buffer.
	AccessRead
	// AccessReadWrite is a read-write storage buffer.
	AccessReadWrite
)

// String returns the access mode as it appears in WGSL declarations.
func (a Access) String() string {
	switch a {
	case AccessUniform:
		return "uniform"
	case AccessRead:
		return "storage,read"
	case AccessReadWrite:
		return "storage,read_write"
	default:
		return fmt.Sprintf("Access(%d)", a)
	}
}

// RequiredUsage returns the buffer usage a binding with this access needs.
func (a Access) RequiredUsage() Usage {
	if a == AccessUniform {
		return UsageUniform
	}
	return UsageStorage
}

// Slot binds one role to a binding index with an access mode.
type Slot struct {
	Role    Role
	Binding uint32
	Access  Access
}

// Signature is the binding contract of one kernel entry point.
type Signature struct {
	// Entry is the entry point name in the kernel source.
	Entry string

	// Slots lists every argument in binding order.
	Slots []Slot

	// Workgroup is the workgroup size declared by the kernel.
	Workgroup [3]uint32
}

// Slot returns the slot for role.
func (s *Signature) Slot(role Role) (Slot, bool) {
	for _, sl := range s.Slots {
		if sl.Role == role {
			return sl, true
		}
	}
	return Slot{}, false
}

// Roles returns the roles of the signature in binding order.
func (s *Signature) Roles() []Role {
	roles := make([]Role, len(s.Slots))
	for i, sl := range s.Slots {
		roles[i] = sl.Role
	}
	return roles
}

// Validate checks the signature for duplicate roles and binding indices.
func (s *Signature) Validate() error {
	if s.Entry == "" {
		return &BindingError{Reason: "signature without entry point"}
	}
	seenRole := make(map[Role]bool, len(s.Slots))
	seenBinding := make(map[uint32]bool, len(s.Slots))
	for _, sl := range s.Slots {
		if seenRole[sl.Role] {
			return &BindingError{Entry: s.Entry, Role: sl.Role, Reason: "duplicate role"}
		}
		if seenBinding[sl.Binding] {
			return &BindingError{Entry: s.Entry, Role: sl.Role, Reason: fmt.Sprintf("duplicate binding %d", sl.Binding)}
		}
		seenRole[sl.Role] = true
		seenBinding[sl.Binding] = true
	}
	return nil
}

// WorkgroupCount returns the number of workgroups needed to cover grid.
// Returns 0 on an axis with no invocations so callers can skip the dispatch.
func (s *Signature) WorkgroupCount(grid Grid) (x, y, z uint32) {
	ceil := func(n, size uint32) uint32 {
		if n == 0 {
			return 0
		}
		if size == 0 {
			size = 1
		}
		return (n + size - 1) / size
	}
	return ceil(grid.X, s.Workgroup[0]), ceil(grid.Y, s.Workgroup[1]), ceil(max(grid.Z, 1), s.Workgroup[2])
}

// Bindings maps roles to buffers for one dispatch.
type Bindings map[Role]BufferID

// Check verifies that b binds exactly the roles of sig, each to a valid
// buffer. The check runs on every dispatch; a count or role mismatch is a
// programming error surfaced as a *BindingError.
func (b Bindings) Check(sig *Signature) error {
	if len(b) != len(sig.Slots) {
		return &BindingError{
			Entry:  sig.Entry,
			Reason: fmt.Sprintf("got %d bindings, kernel declares %d (missing %s)", len(b), len(sig.Slots), b.missing(sig)),
		}
	}
	for _, sl := range sig.Slots {
		id, ok := b[sl.Role]
		if !ok {
			return &BindingError{Entry: sig.Entry, Role: sl.Role, Reason: "role not bound"}
		}
		if id == InvalidBuffer {
			return &BindingError{Entry: sig.Entry, Role: sl.Role, Reason: "invalid buffer"}
		}
	}
	return nil
}

func (b Bindings) missing(sig *Signature) string {
	var names []string
	for _, sl := range sig.Slots {
		if _, ok := b[sl.Role]; !ok {
			names = append(names, string(sl.Role))
		}
	}
	for role := range b {
		if _, ok := sig.Slot(role); !ok {
			names = append(names, "+"+string(role))
		}
	}
	if len(names) == 0 {
		return "none"
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}

// HostArgs is what a software device hands a HostKernel: the grid of the
// dispatch and a 32-bit word view of every bound buffer.
type HostArgs struct {
	Grid    Grid
	Buffers map[Role][]uint32

	// State is whatever Setup stored for this dispatch.
	State any
}

// Words returns the word view of a bound buffer, or nil.
func (a *HostArgs) Words(role Role) []uint32 {
	return a.Buffers[role]
}

// HostKernel is a Go implementation of a kernel entry point.
type HostKernel struct {
	// Roles the implementation reads or writes. Must equal the signature roles.
	Roles []Role

	// Run executes invocations [begin, end) of the flattened grid, where
	// invocation i has x = i % Grid.X and y = i / Grid.X. Run is called
	// concurrently on disjoint ranges.
	Run func(args *HostArgs, begin, end uint64)

	// Setup, when set, runs once per dispatch before any Run call, after
	// earlier dispatches completed. It may leave read-only state in
	// args.State for Run.
	Setup func(args *HostArgs)
}

// ValidateHost checks that every signature has a Go implementation that
// uses exactly the signature's roles.
func ValidateHost(sigs []Signature, host map[string]HostKernel) error {
	for i := range sigs {
		sig := &sigs[i]
		hk, ok := host[sig.Entry]
		if !ok || hk.Run == nil {
			return &BindingError{Entry: sig.Entry, Reason: "no host implementation"}
		}
		if len(hk.Roles) != len(sig.Slots) {
			return &BindingError{
				Entry:  sig.Entry,
				Reason: fmt.Sprintf("host kernel uses %d roles, signature declares %d", len(hk.Roles), len(sig.Slots)),
			}
		}
		for _, r := range hk.Roles {
			if _, ok := sig.Slot(r); !ok {
				return &BindingError{Entry: sig.Entry, Role: r, Reason: "host kernel role not in signature"}
			}
		}
	}
	return nil
}
