package adjustment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChain_InsertMergesByKind(t *testing.T) {
	c := NewChain()

	require.Equal(t, Inserted, c.Insert(MustNew(Resize{Width: 100, Height: 100})))
	require.Equal(t, Inserted, c.Insert(MustNew(Crop{AspectRatio: AspectRatio{1, 1}})))
	require.Equal(t, Replaced, c.Insert(MustNew(Resize{Width: 50})))

	specs := c.Ordered()
	require.Len(t, specs, 2)
	require.Equal(t, KindResize, specs[0].Kind())
	require.Equal(t, 0, specs[0].Position)
	require.Equal(t, Resize{Width: 50}, specs[0].Params)
	require.Equal(t, KindCrop, specs[1].Kind())
	require.Equal(t, 1, specs[1].Position)
}

func TestChain_OrderPreserved(t *testing.T) {
	tests := []struct {
		name   string
		insert []Spec
		want   []Kind
	}{
		{
			name: "insertion order",
			insert: []Spec{
				MustNew(Crop{Width: 10, Height: 10}),
				MustNew(Resize{Width: 5}),
				MustNew(Flip{Horizontal: true}),
			},
			want: []Kind{KindCrop, KindResize, KindFlip},
		},
		{
			name: "re-inserting an earlier kind keeps its slot",
			insert: []Spec{
				MustNew(Resize{Width: 5}),
				MustNew(Quality{Quality: 80}),
				MustNew(Format{Format: "jpeg"}),
				MustNew(Resize{Height: 20}),
				MustNew(Quality{Quality: 60}),
			},
			want: []Kind{KindResize, KindQuality, KindFormat},
		},
		{
			name: "incoming position is ignored on append",
			insert: []Spec{
				{Position: 42, Params: Rotate{Degrees: 90}},
				{Position: -3, Params: Flip{Vertical: true}},
			},
			want: []Kind{KindRotate, KindFlip},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(tt.insert...)

			got := make([]Kind, 0, c.Len())
			for i, s := range c.Ordered() {
				require.Equal(t, i, s.Position)
				got = append(got, s.Kind())
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestChain_OrderedIsSnapshot(t *testing.T) {
	c := NewChain(MustNew(Resize{Width: 10}))
	snap := c.Ordered()

	c.Insert(MustNew(Resize{Width: 99}))
	c.Insert(MustNew(Flip{Horizontal: true}))

	require.Len(t, snap, 1)
	require.Equal(t, Resize{Width: 10}, snap[0].Params)
}

func TestChain_Equal(t *testing.T) {
	a := NewChain(MustNew(Crop{Width: 10, Height: 10}), MustNew(Resize{Width: 5}))
	b := NewChain(MustNew(Crop{Width: 10, Height: 10}), MustNew(Resize{Width: 5}))
	reversed := NewChain(MustNew(Resize{Width: 5}), MustNew(Crop{Width: 10, Height: 10}))
	otherParams := NewChain(MustNew(Crop{Width: 10, Height: 10}), MustNew(Resize{Width: 6}))

	require.True(t, a.Equal(b))
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.False(t, a.Equal(reversed))
	require.NotEqual(t, a.Fingerprint(), reversed.Fingerprint())

	require.False(t, a.Equal(otherParams))
	require.NotEqual(t, a.Fingerprint(), otherParams.Fingerprint())

	require.True(t, NewChain().Equal(NewChain()))
}

func TestChain_CloneIsDetached(t *testing.T) {
	template := NewChain(MustNew(Resize{Width: 100, Height: 100}))
	clone := template.Clone()

	clone.Insert(MustNew(Crop{AspectRatio: AspectRatio{1, 1}}))
	clone.Insert(MustNew(Resize{Width: 10}))

	require.Equal(t, 1, template.Len())
	spec, ok := template.Get(KindResize)
	require.True(t, ok)
	require.Equal(t, Resize{Width: 100, Height: 100}, spec.Params)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"resize width only", Resize{Width: 10}, false},
		{"resize nothing", Resize{}, true},
		{"resize negative", Resize{Width: -1, Height: 10}, true},
		{"resize outbound needs box", Resize{Width: 10, Mode: ModeOutbound}, true},
		{"resize unknown mode", Resize{Width: 10, Mode: "stretch"}, true},
		{"resize at limit", Resize{Width: MaxDimension, AllowUpscaling: true}, false},
		{"resize beyond limit", Resize{Width: MaxDimension + 1}, true},
		{"resize huge upscale", Resize{Width: 1 << 62, AllowUpscaling: true}, true},
		{"resize huge outbound", Resize{Width: 10, Height: 1 << 40, Mode: ModeOutbound}, true},
		{"crop rect", Crop{Width: 5, Height: 5}, false},
		{"crop ratio", Crop{AspectRatio: AspectRatio{16, 9}}, false},
		{"crop empty", Crop{X: 1}, true},
		{"crop huge offset", Crop{X: 1 << 62, Width: 10, Height: 10}, true},
		{"crop huge rect", Crop{Width: MaxDimension + 1, Height: 10}, true},
		{"flip none", Flip{}, true},
		{"rotate 45", Rotate{Degrees: 45}, true},
		{"rotate 270", Rotate{Degrees: 270}, false},
		{"quality 0", Quality{}, true},
		{"quality 101", Quality{Quality: 101}, true},
		{"format webp", Format{Format: "webp"}, true},
		{"format png pointer", &Format{Format: "png"}, false},
		{"nil", nil, true},
		{"typed nil resize", (*Resize)(nil), true},
		{"typed nil crop", (*Crop)(nil), true},
		{"typed nil flip", (*Flip)(nil), true},
		{"typed nil rotate", (*Rotate)(nil), true},
		{"typed nil quality", (*Quality)(nil), true},
		{"typed nil format", (*Format)(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.params)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.params.Kind(), s.Kind())
		})
	}
}

func TestNew_TypedNilIsRejected(t *testing.T) {
	var p *Resize
	require.NotPanics(t, func() {
		_, err := New(p)
		require.ErrorIs(t, err, errNilAdjustment)
	})
}

func TestNew_PointerParamsAreCopied(t *testing.T) {
	p := &Resize{Width: 10}
	s := MustNew(p)
	p.Width = 99

	require.Equal(t, Resize{Width: 10}, s.Params)
}

func TestSpec_SameKind(t *testing.T) {
	require.True(t, MustNew(Resize{Width: 1}).SameKind(MustNew(Resize{Height: 2})))
	require.False(t, MustNew(Resize{Width: 1}).SameKind(MustNew(Crop{Width: 1, Height: 1})))
}
