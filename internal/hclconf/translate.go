package hclconf

import "github.com/vk/shipgridgo/internal/config"

// translate converts the HCL-specific schema into the agnostic model.
func translate(raw *fileSchema) *config.Model {
	m := &config.Model{Tool: raw.Tool}
	if raw.Toolchain != nil {
		m.Toolchain = &config.Toolchain{
			Name:    raw.Toolchain.Name,
			Version: raw.Toolchain.Version,
		}
	}
	for _, p := range raw.Platforms {
		m.Platforms = append(m.Platforms, &config.Platform{
			OS:               p.OS,
			Arch:             p.Arch,
			ToolchainVersion: p.ToolchainVersion,
			ProjectFile:      p.ProjectFile,
		})
	}
	if raw.Publish != nil {
		m.Publish = &config.Publish{
			Owner:          raw.Publish.Owner,
			Repository:     raw.Publish.Repository,
			SignerIdentity: raw.Publish.SignerIdentity,
		}
	}
	return m
}
