package internal

import (
	"fmt"
	"testing"
)

type recordingPatcher struct {
	jobs []PatchJob
}

func (p *recordingPatcher) Patch(job PatchJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

func TestPatcherProviderGet(t *testing.T) {
	provider := NewPatcherProvider(t.TempDir())

	if got := fmt.Sprint(provider.Get(IPS)); got != "IPSPatcher" {
		t.Errorf("Get(IPS) = %s, want IPSPatcher", got)
	}
	if got := fmt.Sprint(provider.Get(UPS)); got != "UPSPatcher" {
		t.Errorf("Get(UPS) = %s, want UPSPatcher", got)
	}
	if provider.Get(IPS) != provider.Get(IPS) {
		t.Error("Get should return the same instance for a format")
	}
}

func TestPatcherProviderWith(t *testing.T) {
	ips := &recordingPatcher{}
	ups := &recordingPatcher{}
	provider := NewPatcherProviderWith(ips, ups)

	if err := provider.Get(UPS).Patch(PatchJob{SourcePath: "a.rom", PatchPath: "a.ups"}); err != nil {
		t.Fatal(err)
	}

	if len(ips.jobs) != 0 || len(ups.jobs) != 1 {
		t.Errorf("jobs routed to ips=%d ups=%d, want 0 and 1", len(ips.jobs), len(ups.jobs))
	}
}
