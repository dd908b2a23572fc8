package internal

// PatcherProvider hands out the Patcher for a given PatchFormat
type PatcherProvider struct {
	ipsPatcher Patcher
	upsPatcher Patcher
}

// NewPatcherProvider creates a provider for the built in IPS and UPS
// patchers. Temporary files are created in tempDir, or in os.TempDir() when
// tempDir is empty.
func NewPatcherProvider(tempDir string) *PatcherProvider {
	return NewPatcherProviderWith(
		newFilePatcher(ipsHandler{}, tempDir),
		newFilePatcher(upsHandler{}, tempDir),
	)
}

// NewPatcherProviderWith creates a provider around existing patchers
func NewPatcherProviderWith(ipsPatcher Patcher, upsPatcher Patcher) *PatcherProvider {
	return &PatcherProvider{
		ipsPatcher: ipsPatcher,
		upsPatcher: upsPatcher,
	}
}

// Get returns the patcher instance for the format (IPS or UPS)
func (p *PatcherProvider) Get(format PatchFormat) Patcher {
	if format == IPS {
		return p.ipsPatcher
	}
	return p.upsPatcher
}
