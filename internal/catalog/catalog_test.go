package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPackages(t *testing.T) {
	c := Default()
	tests := []struct {
		coins int64
		paise int64
	}{
		{50, 10_000},
		{100, 20_000},
		{500, 95_000},
		{10000, 1_200_000},
	}
	for _, tt := range tests {
		p, err := c.Package(tt.coins)
		if err != nil {
			t.Fatalf("package %d: %v", tt.coins, err)
		}
		if p.MinorUnits() != tt.paise {
			t.Fatalf("package %d: expected %d paise, got %d", tt.coins, tt.paise, p.MinorUnits())
		}
	}
	if _, err := c.Package(42); !errors.Is(err, ErrUnknownPackage) {
		t.Fatalf("expected ErrUnknownPackage, got %v", err)
	}
	if c.Prices["view_requirement"] != 200 || c.Prices["contact_tutor"] != 100 {
		t.Fatalf("unexpected default prices %v", c.Prices)
	}
}

func TestLoadOverridesFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	data := `
[prices]
view_requirement = 150

[[package]]
coins = 100
price = "199.50"

[[package]]
coins = 20
price = 45
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Packages) != 2 {
		t.Fatalf("expected packages to be replaced, got %d", len(c.Packages))
	}
	p, err := c.Package(100)
	if err != nil || p.MinorUnits() != 19_950 {
		t.Fatalf("expected 19950 paise, got %d (%v)", p.MinorUnits(), err)
	}
	if sorted := c.Sorted(); sorted[0].Coins != 20 {
		t.Fatalf("expected sorted packages, got %v", sorted)
	}
	if c.Prices["view_requirement"] != 150 || c.Prices["contact_tutor"] != 100 {
		t.Fatalf("expected merged prices, got %v", c.Prices)
	}
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	data := "[[package]]\ncoins = 100\nprice = \"0\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
}
