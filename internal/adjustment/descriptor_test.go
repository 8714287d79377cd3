package adjustment

import (
	"testing"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       model.AdjustmentRequest
		want      Params
		wantField string
		wantErr   bool
	}{
		{
			name: "resize from yaml ints",
			req:  model.AdjustmentRequest{Type: "resize", Options: map[string]any{"width": 100, "height": 100, "mode": "outbound"}},
			want: Resize{Width: 100, Height: 100, Mode: ModeOutbound},
		},
		{
			name: "resize from json floats",
			req:  model.AdjustmentRequest{Type: "Resize", Options: map[string]any{"width": float64(50)}},
			want: Resize{Width: 50},
		},
		{
			name: "crop with aspect ratio",
			req:  model.AdjustmentRequest{Type: "crop", Options: map[string]any{"aspect_ratio": "16:9"}},
			want: Crop{AspectRatio: AspectRatio{16, 9}},
		},
		{
			name: "format alias",
			req:  model.AdjustmentRequest{Type: "format", Options: map[string]any{"format": "JPG"}},
			want: Format{Format: "jpeg"},
		},
		{
			name: "flip from strings",
			req:  model.AdjustmentRequest{Type: "flip", Options: map[string]any{"vertical": "true"}},
			want: Flip{Vertical: true},
		},
		{
			name:      "unknown kind",
			req:       model.AdjustmentRequest{Type: "sharpen"},
			wantField: "type",
			wantErr:   true,
		},
		{
			name:      "missing quality",
			req:       model.AdjustmentRequest{Type: "quality"},
			wantField: "quality",
			wantErr:   true,
		},
		{
			name:      "fractional width",
			req:       model.AdjustmentRequest{Type: "resize", Options: map[string]any{"width": 10.5}},
			wantField: "width",
			wantErr:   true,
		},
		{
			name:      "bad aspect ratio",
			req:       model.AdjustmentRequest{Type: "crop", Options: map[string]any{"aspect_ratio": "1:-8"}},
			wantField: "aspect_ratio",
			wantErr:   true,
		},
		{
			name:      "unknown option",
			req:       model.AdjustmentRequest{Type: "rotate", Options: map[string]any{"degrees": 90, "clockwise": true}},
			wantField: "clockwise",
			wantErr:   true,
		},
		{
			name:    "json width beyond the limit",
			req:     model.AdjustmentRequest{Type: "resize", Options: map[string]any{"width": float64(1 << 62), "allow_upscaling": true}},
			wantErr: true,
		},
		{
			name:    "invalid params",
			req:     model.AdjustmentRequest{Type: "rotate", Options: map[string]any{"degrees": 45}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := FromRequest(tt.req)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrConfiguration)
				var cfgErr *model.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, tt.wantField, cfgErr.Field)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, spec.Params)
		})
	}
}

func TestFromRequests_ReportsIndex(t *testing.T) {
	_, err := FromRequests([]model.AdjustmentRequest{
		{Type: "resize", Options: map[string]any{"width": 10}},
		{Type: "rotate", Options: map[string]any{"degrees": 33}},
	})

	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, 1, cfgErr.Index)
}

func TestRequests_RoundTrip(t *testing.T) {
	c := NewChain(
		MustNew(Crop{X: 1, Y: 2, Width: 30, Height: 40}),
		MustNew(Resize{Width: 10, Height: 10, Mode: ModeOutbound, AllowUpscaling: true}),
		MustNew(Crop{AspectRatio: AspectRatio{4, 3}}),
		MustNew(Flip{Horizontal: true}),
		MustNew(Rotate{Degrees: 180}),
		MustNew(Quality{Quality: 70}),
		MustNew(Format{Format: "png"}),
	)

	back, err := FromRequests(c.Requests())
	require.NoError(t, err)
	require.True(t, c.Equal(back))
	require.Equal(t, c.Fingerprint(), back.Fingerprint())
}
