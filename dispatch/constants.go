package dispatch

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gogpu/dxkernel/kernel"
)

// PackConstants packs captured field values by name into the payload for
// DataLoader.LoadConstants.
//
// A value must have the exact byte size of its field: float32 for float,
// [4]float32 or []float32 of length 4 for float4, 16 float32 values in row
// order for float4x4, and so on. int, uint and bool are accepted for 32-bit
// fields.
func PackConstants(desc *kernel.Description, values map[string]any) ([]byte, error) {
	layout, err := kernel.Layout(desc)
	if err != nil {
		return nil, err
	}
	return pack(layout, values)
}

func pack(layout *kernel.ConstantLayout, values map[string]any) ([]byte, error) {
	const base = dispatchSizeDWords * 4

	fields := layout.Slots[dispatchSizeDWords:]
	if len(values) > len(fields) {
		var unknown []string
		for name := range values {
			if _, ok := layout.Find(name); !ok || isDispatchSlot(name) {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("dispatch: no captured fields named %v", unknown)
	}

	out := make([]byte, layout.Size-base)
	for _, s := range fields {
		v, ok := values[s.Name]
		if !ok {
			return nil, fmt.Errorf("dispatch: no value for captured field %s", s.Name)
		}
		if err := encodeSlot(out[s.Offset-base:], s, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isDispatchSlot(name string) bool {
	return name == "__x" || name == "__y" || name == "__z"
}

// encodeSlot writes v at the start of dst with the row stride of s.
func encodeSlot(dst []byte, s kernel.Slot, v any) error {
	raw, err := binary.Append(nil, binary.LittleEndian, normalize(v))
	if err != nil {
		return fmt.Errorf("dispatch: captured field %s: %w", s.Name, err)
	}

	row := s.Cols * s.Scalar()
	if uint32(len(raw)) != s.Rows*row {
		return fmt.Errorf("dispatch: captured field %s of type %s needs %d bytes, got %T with %d",
			s.Name, s.Type, s.Rows*row, v, len(raw))
	}
	for r := uint32(0); r < s.Rows; r++ {
		copy(dst[r*s.Stride:], raw[r*row:(r+1)*row])
	}
	return nil
}

// normalize maps Go types without a fixed size onto their 32-bit HLSL
// counterparts.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int32(x)
	case uint:
		return uint32(x)
	case bool:
		return boolDWord(x)
	case []bool:
		out := make([]uint32, len(x))
		for i, b := range x {
			out[i] = boolDWord(b)
		}
		return out
	default:
		return v
	}
}

func boolDWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
