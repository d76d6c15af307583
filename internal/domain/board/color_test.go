package board

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseColor covers tuple, hexadecimal and invalid pixel assignments.
func TestParseColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    Color
		wantErr error
	}{
		{name: "hex", value: 0xFF00AA, want: 0xFF00AA},
		{name: "hex zero", value: 0, want: 0},
		{name: "json number", value: float64(0x123456), want: 0x123456},
		{name: "int slice", value: []int{255, 0, 16}, want: 0xFF0010},
		{name: "array", value: [3]int{1, 2, 3}, want: 0x010203},
		{name: "json list", value: []any{float64(10), float64(20), float64(30)}, want: 0x0A141E},
		{name: "hex too large", value: 0x1000000, wantErr: ErrPixelRange},
		{name: "hex negative", value: -1, wantErr: ErrPixelRange},
		{name: "tuple too short", value: []int{1, 2}, wantErr: ErrValidPixelAssign},
		{name: "tuple component too large", value: []int{1, 256, 3}, wantErr: ErrValidPixelAssign},
		{name: "tuple fraction", value: []float64{1.5, 2, 3}, wantErr: ErrValidPixelAssign},
		{name: "string", value: "#FFFFFF", wantErr: ErrAssignPixelType},
		{name: "bool", value: true, wantErr: ErrAssignPixelType},
		{name: "fraction", value: 0.5, wantErr: ErrAssignPixelType},
		{name: "nil", value: nil, wantErr: ErrAssignPixelType},
		{name: "int8", value: int8(7), want: 7},
		{name: "int16", value: int16(0x1234), want: 0x1234},
		{name: "uint", value: uint(0xABCDEF), want: 0xABCDEF},
		{name: "uint16", value: uint16(0xFFFF), want: 0xFFFF},
		{name: "uint64", value: uint64(0x00FF00), want: 0x00FF00},
		{name: "float32", value: float32(255), want: 0xFF},
		{name: "uint64 huge", value: uint64(1 << 63), wantErr: ErrPixelRange},
		{name: "float32 fraction", value: float32(0.25), wantErr: ErrAssignPixelType},
		{name: "float huge", value: 1e300, wantErr: ErrPixelRange},
		{name: "tuple of mixed kinds", value: []any{int8(1), uint16(2), float32(3)}, want: 0x010203},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseColor(tc.value)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestColorComponents verifies RGB packing and rendering.
func TestColorComponents(t *testing.T) {
	t.Parallel()

	c := RGB(0x12, 0x34, 0x56)
	r, g, b := c.Components()

	require.Equal(t, uint8(0x12), r)
	require.Equal(t, uint8(0x34), g)
	require.Equal(t, uint8(0x56), b)
	require.Equal(t, "#123456", c.String())
}
