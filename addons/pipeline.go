package addons

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/tracing"
)

// Result is the output of a preprocessing run
type Result struct {
	// Name of the original payload
	Name           string
	Data           []byte
	Size           int64
	Metadata       types.AddonMetadata
	ProviderConfig types.ProviderConfig
	// The addons that ran, in execution order
	Applied []Addon
}

// Names returns the names of the applied addons in execution order
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Applied))
	for _, a := range r.Applied {
		names = append(names, a.Name())
	}
	return names
}

type Pipeline struct {
	registry *Registry
}

func NewPipeline(registry *Registry) *Pipeline {
	return &Pipeline{registry: registry}
}

// Select returns the addons that apply to the config, sorted by ascending
// priority. Addons with the same priority keep their registration order.
// If no addon applies the default addon is returned.
func (p *Pipeline) Select(cfg types.DealConfig) []Addon {
	var applicable []Addon
	for _, a := range p.registry.All() {
		if a.IsApplicable(cfg) {
			applicable = append(applicable, a)
		}
	}
	if len(applicable) == 0 {
		return []Addon{p.registry.Default()}
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority() < applicable[j].Priority()
	})
	return applicable
}

// Run executes the applicable addons in order against the config payload and
// merges their provider configuration. If any addon fails, no partial result
// is returned.
func (p *Pipeline) Run(ctx context.Context, cfg types.DealConfig) (*Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "addons.run")
	defer span.End()

	selected := p.Select(cfg)

	pc := &Context{
		Config:   cfg,
		Data:     cfg.Payload.Data,
		Size:     cfg.Payload.Size,
		Metadata: make(types.AddonMetadata, len(selected)),
	}
	if pc.Size == 0 {
		pc.Size = int64(len(pc.Data))
	}

	for _, a := range selected {
		log.Debugw("running addon", "addon", a.Name(), "priority", a.Priority(), "size", pc.Size)

		out, err := a.Preprocess(ctx, pc)
		if err != nil {
			return nil, pipelineError(a, err)
		}
		if out == nil {
			return nil, &types.PipelineError{Addon: a.Name(), Err: errors.New("addon returned no output")}
		}

		if v, ok := a.(Validator); ok {
			if err := v.Validate(out); err != nil {
				return nil, pipelineError(a, fmt.Errorf("validating output: %w", err))
			}
		}

		pc.Data = out.Data
		pc.Size = out.Size
		pc.Metadata[a.Name()] = out.Metadata
	}

	// Later addons overwrite keys set by earlier addons
	merged := types.NewProviderConfig()
	for _, a := range selected {
		exp, ok := a.(ConfigExporter)
		if !ok {
			continue
		}

		pcfg, err := exp.ProviderConfig(pc.Metadata)
		if err != nil {
			return nil, pipelineError(a, fmt.Errorf("exporting provider config: %w", err))
		}
		for k, v := range pcfg.DataSet {
			if prev, ok := merged.DataSet[k]; ok && prev != v {
				log.Debugw("data set config key overwritten", "addon", a.Name(), "key", k)
			}
			merged.DataSet[k] = v
		}
		for k, v := range pcfg.Piece {
			if prev, ok := merged.Piece[k]; ok && prev != v {
				log.Debugw("piece config key overwritten", "addon", a.Name(), "key", k)
			}
			merged.Piece[k] = v
		}
	}

	res := &Result{
		Name:           cfg.Payload.Name,
		Data:           pc.Data,
		Size:           pc.Size,
		Metadata:       pc.Metadata,
		ProviderConfig: merged,
		Applied:        selected,
	}
	log.Infow("preprocessing complete", "addons", res.Names(), "size", res.Size)
	return res, nil
}

// pipelineError tags err with the addon name. A ConfigurationError in the
// chain is preserved so that the deal error code reflects it.
func pipelineError(a Addon, err error) error {
	return &types.PipelineError{Addon: a.Name(), Err: err}
}
