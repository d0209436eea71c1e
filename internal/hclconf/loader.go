// Package hclconf loads pipeline definitions written in HCL and translates
// them into the format-agnostic config model. Trigger metadata is exposed
// to pipeline expressions as the `trigger` variable.
package hclconf

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// Loader parses .hcl pipeline files.
type Loader struct{}

// NewLoader creates an HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, trigger *config.Trigger, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing HCL pipeline definition.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %q: %w", path, diags)
	}

	var raw fileSchema
	if diags := gohcl.DecodeBody(file.Body, evalContext(trigger), &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %q: %w", path, diags)
	}

	model := translate(&raw)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition %q: %w", path, err)
	}
	logger.Debug("Pipeline definition loaded.", "platforms", len(model.Platforms))
	return model, nil
}

// evalContext builds the expression scope available to pipeline files.
func evalContext(trigger *config.Trigger) *hcl.EvalContext {
	if trigger == nil {
		trigger = &config.Trigger{}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"trigger": cty.ObjectVal(map[string]cty.Value{
				"ref":    cty.StringVal(trigger.Ref),
				"commit": cty.StringVal(trigger.Commit),
			}),
		},
	}
}
