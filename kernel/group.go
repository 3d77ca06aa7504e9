package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

// D3D12 compute limits.
const (
	MaxGroupVolume = 1024
	MaxGroupSizeXY = 1024
	MaxGroupSizeZ  = 64
)

// GroupSize is the number of threads per thread group on each axis.
type GroupSize struct {
	X, Y, Z uint32
}

// Volume returns the number of threads in one group.
func (g GroupSize) Volume() uint32 {
	return g.X * g.Y * g.Z
}

// String formats the size as "x,y,z".
func (g GroupSize) String() string {
	return fmt.Sprintf("%d,%d,%d", g.X, g.Y, g.Z)
}

// Validate checks the size against the D3D12 compute limits.
func (g GroupSize) Validate() error {
	if g.X == 0 || g.Y == 0 || g.Z == 0 {
		return NewError(ErrInvalidGroupSize, fmt.Sprintf("group size %s has a zero component", g))
	}
	if g.X > MaxGroupSizeXY || g.Y > MaxGroupSizeXY || g.Z > MaxGroupSizeZ {
		return NewError(ErrInvalidGroupSize, fmt.Sprintf("group size %s exceeds per-axis limits", g))
	}
	// Checked per axis first so the product cannot overflow.
	if g.Volume() > MaxGroupVolume {
		return NewError(ErrInvalidGroupSize,
			fmt.Sprintf("group size %s has %d threads, limit is %d", g, g.Volume(), MaxGroupVolume))
	}
	return nil
}

// ParseGroupSize parses "x,y,z". Missing trailing components default to 1.
func ParseGroupSize(s string) (GroupSize, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return GroupSize{}, NewError(ErrInvalidGroupSize, fmt.Sprintf("cannot parse group size %q", s))
	}
	dims := [3]uint32{1, 1, 1}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return GroupSize{}, NewError(ErrInvalidGroupSize, fmt.Sprintf("cannot parse group size %q", s))
		}
		dims[i] = uint32(v)
	}
	g := GroupSize{X: dims[0], Y: dims[1], Z: dims[2]}
	return g, g.Validate()
}
