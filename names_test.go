package trailhead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameHierarchy_SerializeSingleElement(t *testing.T) {
	t.Parallel()
	h, err := NewNameHierarchy(DelimiterCxx, NameElement{Name: "Widget"})
	require.NoError(t, err)

	got, err := h.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "::\tmWidget\ts\tp", got)
	assert.NotContains(t, got, "\tn", "single element has no name join")
}

func TestNameHierarchy_SerializeNested(t *testing.T) {
	t.Parallel()
	h, err := NewNameHierarchy(DelimiterCxx,
		NameElement{Name: "gui"},
		NameElement{Name: "Widget"},
		NameElement{Prefix: "void", Name: "draw", Postfix: "()"},
	)
	require.NoError(t, err)

	got, err := h.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "::\tmgui\ts\tp\tnWidget\ts\tp\tndraw\tsvoid\tp()", got)
}

func TestNameHierarchy_SerializeRangePrefixes(t *testing.T) {
	t.Parallel()
	h, err := NewNameHierarchy(DelimiterJava,
		NameElement{Name: "com"},
		NameElement{Name: "example"},
		NameElement{Name: "Main"},
	)
	require.NoError(t, err)

	first, err := h.SerializeRange(0, 1)
	require.NoError(t, err)
	assert.Equal(t, ".\tmcom\ts\tp", first)

	two, err := h.SerializeRange(0, 2)
	require.NoError(t, err)
	assert.Equal(t, ".\tmcom\ts\tp\tnexample\ts\tp", two)

	_, err = h.SerializeRange(2, 1)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = h.SerializeRange(0, 4)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNameHierarchy_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		h    NameHierarchy
	}{
		{"single", NameHierarchy{Delimiter: DelimiterCxx, Elements: []NameElement{
			{Name: "Widget"},
		}}},
		{"nested with parts", NameHierarchy{Delimiter: DelimiterCxx, Elements: []NameElement{
			{Name: "gui"},
			{Name: "Widget"},
			{Prefix: "void", Name: "draw", Postfix: "(int, int)"},
		}}},
		{"file path", NameHierarchy{Delimiter: DelimiterFile, Elements: []NameElement{
			{Name: "src/widget.cpp"},
		}}},
		{"tab and backslash", NameHierarchy{Delimiter: DelimiterUnknown, Elements: []NameElement{
			{Name: "weird\tname"},
			{Prefix: `C:\temp`, Name: "x", Postfix: "\t\\"},
		}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			serialized, err := tc.h.Serialize()
			require.NoError(t, err)

			got, err := DeserializeNameHierarchy(serialized)
			require.NoError(t, err)
			assert.Equal(t, tc.h, got)
		})
	}
}

func TestNameHierarchy_EmptyRejected(t *testing.T) {
	t.Parallel()
	_, err := NewNameHierarchy(DelimiterCxx)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDeserializeNameHierarchy_Malformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
	}{
		{"no meta separator", "Widget"},
		{"no prefix separator", "::\tmWidget"},
		{"no postfix separator", "::\tmWidget\tsvoid"},
		{"dangling escape", "::\tmWidget\\\ts\tp"},
		{"unknown escape", "::\tmWid\\xget\ts\tp"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := DeserializeNameHierarchy(tc.input)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}
