package hclconf

// fileSchema mirrors the top-level structure of a pipeline .hcl file.
type fileSchema struct {
	Tool      string           `hcl:"tool"`
	Toolchain *toolchainSchema `hcl:"toolchain,block"`
	Platforms []platformSchema `hcl:"platform,block"`
	Publish   *publishSchema   `hcl:"publish,block"`
}

type toolchainSchema struct {
	Name    string `hcl:"name"`
	Version string `hcl:"version"`
}

type platformSchema struct {
	OS               string `hcl:"os,label"`
	Arch             string `hcl:"arch,label"`
	ToolchainVersion string `hcl:"toolchain_version,optional"`
	ProjectFile      string `hcl:"project_file"`
}

type publishSchema struct {
	Owner          string `hcl:"owner"`
	Repository     string `hcl:"repository"`
	SignerIdentity string `hcl:"signer_identity"`
}
