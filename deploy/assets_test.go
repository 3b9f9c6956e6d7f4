package deploy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
)

func TestSelectAssetPrefersPlatformExtension(t *testing.T) {
	assets := []github.Asset{
		{Name: "app-macos.dmg", Size: 500},
		{Name: "app-windows.exe", Size: 100},
		{Name: "app-linux.tar.gz", Size: 300},
	}

	got, err := selectAsset(assets, domain.PlatformWindows)
	if err != nil {
		t.Fatalf("selectAsset failed: %v", err)
	}
	if got.Name != "app-windows.exe" {
		t.Fatalf("expected app-windows.exe, got %s", got.Name)
	}
}

func TestSelectAssetExtensionPriorityOverListOrder(t *testing.T) {
	// .deb outranks .tar.gz for linux even when listed later.
	assets := []github.Asset{
		{Name: "app-linux.tar.gz", Size: 300},
		{Name: "app-linux.deb", Size: 200},
	}

	got, err := selectAsset(assets, domain.PlatformLinux)
	if err != nil {
		t.Fatalf("selectAsset failed: %v", err)
	}
	if got.Name != "app-linux.deb" {
		t.Fatalf("expected app-linux.deb, got %s", got.Name)
	}
}

func TestSelectAssetFirstMatchWithinSameExtension(t *testing.T) {
	assets := []github.Asset{
		{Name: "app-linux-amd64.tar.gz", Size: 100},
		{Name: "app-linux-arm64.tar.gz", Size: 900},
	}

	got, err := selectAsset(assets, domain.PlatformLinux)
	if err != nil {
		t.Fatalf("selectAsset failed: %v", err)
	}
	if got.Name != "app-linux-amd64.tar.gz" {
		t.Fatalf("expected first listed match, got %s", got.Name)
	}
}

func TestSelectAssetFallsBackToLargest(t *testing.T) {
	assets := []github.Asset{
		{Name: "data-small.bin", Size: 10},
		{Name: "data-full.bin", Size: 9000},
		{Name: "data-mid.bin", Size: 500},
	}

	got, err := selectAsset(assets, domain.PlatformLinux)
	if err != nil {
		t.Fatalf("selectAsset failed: %v", err)
	}
	if got.Name != "data-full.bin" {
		t.Fatalf("expected largest asset, got %s", got.Name)
	}

	// Ties go to the first-seen asset.
	tied := []github.Asset{
		{Name: "a.bin", Size: 100},
		{Name: "b.bin", Size: 100},
	}
	got, err = selectAsset(tied, domain.PlatformMacOS)
	if err != nil {
		t.Fatalf("selectAsset failed: %v", err)
	}
	if got.Name != "a.bin" {
		t.Fatalf("expected first-seen on tie, got %s", got.Name)
	}
}

func TestSelectAssetEmpty(t *testing.T) {
	if _, err := selectAsset(nil, domain.PlatformLinux); !errors.Is(err, ErrNoAssets) {
		t.Fatalf("expected ErrNoAssets, got %v", err)
	}
}

func TestExcludeSourceAssets(t *testing.T) {
	assets := []github.Asset{
		{Name: "app-windows.exe"},
		{Name: "SourceCode.zip"},
		{Name: "app-src.tar.gz"},
		{Name: "source.tar.gz"},
		{Name: "app-linux.tar.gz"},
	}

	got := excludeSourceAssets(assets)
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d: %+v", len(got), got)
	}
	if got[0].Name != "app-windows.exe" || got[1].Name != "app-linux.tar.gz" {
		t.Fatalf("unexpected survivors: %+v", got)
	}

	// Excluding everything leaves nothing to select.
	only := []github.Asset{{Name: "source.zip"}}
	if _, err := selectAsset(excludeSourceAssets(only), domain.PlatformLinux); !errors.Is(err, ErrNoAssets) {
		t.Fatalf("expected ErrNoAssets, got %v", err)
	}
}

func TestAssetExtension(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		want        string
	}{
		{"app-linux.tar.gz", "", ".tar.gz"},
		{"App-macOS.app.zip", "", ".app.zip"},
		{"app-windows.exe", "", ".exe"},
		{"app.dmg", "", ".dmg"},
		{"installer", "application/x-msdownload", ".exe"},
		{"bundle", "application/zip", ".zip"},
		{"blob", "application/octet-stream", ""},
	}
	for _, tc := range cases {
		if got := assetExtension(tc.name, tc.contentType); got != tc.want {
			t.Fatalf("assetExtension(%q, %q) = %q, want %q", tc.name, tc.contentType, got, tc.want)
		}
	}
}

func TestInstallAndVerifyArtifact(t *testing.T) {
	dir := t.TempDir()

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		return path
	}

	bin := write("app-v1.0.0.tar.gz", "payload")
	if err := installArtifact(bin, domain.PlatformLinux); err != nil {
		t.Fatalf("installArtifact failed: %v", err)
	}
	if err := verifyArtifact(bin, domain.PlatformLinux); err != nil {
		t.Fatalf("verifyArtifact failed: %v", err)
	}

	// Missing file fails installation.
	if err := installArtifact(dir+"/missing.bin", domain.PlatformLinux); err == nil {
		t.Fatal("expected error for missing artifact")
	}

	// Empty file fails verification everywhere.
	empty := write("empty.exe", "")
	for _, p := range []domain.Platform{domain.PlatformWindows, domain.PlatformMacOS, domain.PlatformLinux} {
		if err := verifyArtifact(empty, p); err == nil {
			t.Fatalf("expected empty artifact to fail verification on %s", p)
		}
	}

	// Non-exe passes on linux and macos but fails on windows.
	archive := write("app-v2.0.0.zip", "payload")
	if err := verifyArtifact(archive, domain.PlatformLinux); err != nil {
		t.Fatalf("verifyArtifact failed on linux: %v", err)
	}
	if err := verifyArtifact(archive, domain.PlatformMacOS); err != nil {
		t.Fatalf("verifyArtifact failed on macos: %v", err)
	}
	if err := verifyArtifact(archive, domain.PlatformWindows); err == nil {
		t.Fatal("expected non-exe to fail verification on windows")
	}

	exe := write("app-v2.0.0.EXE", "payload")
	if err := verifyArtifact(exe, domain.PlatformWindows); err != nil {
		t.Fatalf("verifyArtifact failed for .EXE on windows: %v", err)
	}
}
