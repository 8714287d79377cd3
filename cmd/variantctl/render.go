package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/imageproc"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/preset"
	"github.com/UnendingLoop/ImageVariants/internal/storage/memstorage"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] input output",
	Short: "Render one variant of a local image",
	Long: `Render applies either a preset (--preset-id) or an inline JSON list of adjustments
(--adjustments) to the input image and writes the result to output. Example:

  variantctl render in.png out.jpg -a '[{"type":"resize","options":{"width":200}},{"type":"format","options":{"format":"jpeg"}}]'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		presetsFile, _ := cmd.Flags().GetString("presets")
		presetID, _ := cmd.Flags().GetString("preset-id")
		rawAdj, _ := cmd.Flags().GetString("adjustments")

		res, err := renderFile(cmd.Context(), renderOptions{
			Input:       args[0],
			Output:      args[1],
			PresetsFile: presetsFile,
			PresetID:    presetID,
			Adjustments: rawAdj,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s\n", args[1], res.Width, res.Height, res.Fingerprint)
		return nil
	},
}

func init() {
	renderCmd.Flags().String("preset-id", "", "Preset to render (needs --presets)")
	renderCmd.Flags().StringP("adjustments", "a", "", "Adjustments as a JSON list of {type, options}")
}

type renderOptions struct {
	Input       string
	Output      string
	PresetsFile string
	PresetID    string
	Adjustments string
}

func renderFile(ctx context.Context, opts renderOptions) (variant.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.PresetID != "" && opts.Adjustments != "" {
		return variant.Snapshot{}, model.ErrAmbiguousVariant
	}

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return variant.Snapshot{}, fmt.Errorf("read input: %w", err)
	}
	ctype, w, h, err := imageproc.Probe(data)
	if err != nil {
		return variant.Snapshot{}, err
	}

	store := memstorage.New()
	key, err := store.Store(ctx, data, ctype)
	if err != nil {
		return variant.Snapshot{}, err
	}
	original := variant.FromOriginal(model.Original{
		UID:         uuid.New(),
		Title:       opts.Input,
		ResourceKey: string(key),
		ContentType: ctype,
		Width:       w,
		Height:      h,
	})

	transformer, err := imageproc.NewTransformer(store)
	if err != nil {
		return variant.Snapshot{}, err
	}
	factory := variant.NewFactory(transformer, store)

	var v *variant.Variant
	switch {
	case opts.PresetID != "":
		if opts.PresetsFile == "" {
			return variant.Snapshot{}, fmt.Errorf("--preset-id needs --presets")
		}
		catalog, err := preset.LoadFile(opts.PresetsFile, factory)
		if err != nil {
			return variant.Snapshot{}, err
		}
		v, err = catalog.Instantiate(ctx, opts.PresetID, original)
		if err != nil {
			return variant.Snapshot{}, err
		}
	default:
		var reqs []model.AdjustmentRequest
		if opts.Adjustments != "" {
			if err := json.Unmarshal([]byte(opts.Adjustments), &reqs); err != nil {
				return variant.Snapshot{}, fmt.Errorf("parse adjustments: %w", err)
			}
		}
		chain, err := adjustment.FromRequests(reqs)
		if err != nil {
			return variant.Snapshot{}, err
		}
		v, err = factory.New(ctx, original, variant.WithChain(chain))
		if err != nil {
			return variant.Snapshot{}, err
		}
	}

	snap, err := v.Snapshot(ctx)
	if err != nil {
		return variant.Snapshot{}, err
	}
	out, err := store.ReadBytes(ctx, snap.Resource)
	if err != nil {
		return variant.Snapshot{}, err
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return variant.Snapshot{}, fmt.Errorf("write output: %w", err)
	}
	zlog.Logger.Debug().Str("output", opts.Output).Str("variant", snap.ID.String()).Msg("Variant written")
	return snap, nil
}
