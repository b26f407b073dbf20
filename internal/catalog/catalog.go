// Package catalog holds the coin packages for sale and the coin price of each
// unlock purpose.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Currency is the only settlement currency the gateway is configured for.
const Currency = "INR"

var (
	ErrUnknownPackage = errors.New("invalid package")
	ErrInvalidCatalog = errors.New("invalid coin catalog")
)

// Package is a purchasable bundle of coins.
type Package struct {
	Coins int64           `toml:"coins" json:"coins"`
	Price decimal.Decimal `toml:"price" json:"price"`
}

// MinorUnits returns the price in paise as the gateway expects it.
func (p Package) MinorUnits() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// Catalog is the set of packages plus per-purpose unlock prices.
type Catalog struct {
	Packages []Package        `toml:"package"`
	Prices   map[string]int64 `toml:"prices"`
}

// Default mirrors the packages and prices the marketplace launched with.
func Default() Catalog {
	pkgs := []struct {
		coins int64
		inr   int64
	}{
		{50, 100}, {100, 200}, {250, 500}, {500, 950}, {1000, 1800},
		{2500, 4000}, {5000, 7500}, {7500, 10000}, {10000, 12000},
	}
	c := Catalog{Prices: map[string]int64{
		"contact_tutor":    100,
		"view_requirement": 200,
		"message_tutor":    100,
	}}
	for _, p := range pkgs {
		c.Packages = append(c.Packages, Package{Coins: p.coins, Price: decimal.NewFromInt(p.inr)})
	}
	return c
}

// Load reads a catalog from a TOML file. Sections missing from the file keep
// their defaults.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	var file Catalog
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Catalog{}, fmt.Errorf("decode %s: %w", path, err)
	}
	c := Default()
	if len(file.Packages) > 0 {
		c.Packages = file.Packages
	}
	for purpose, price := range file.Prices {
		c.Prices[purpose] = price
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects duplicate or non-positive packages and prices.
func (c Catalog) Validate() error {
	seen := make(map[int64]bool, len(c.Packages))
	for _, p := range c.Packages {
		if p.Coins <= 0 || !p.Price.IsPositive() {
			return fmt.Errorf("%w: package %d coins for %s", ErrInvalidCatalog, p.Coins, p.Price)
		}
		if seen[p.Coins] {
			return fmt.Errorf("%w: duplicate package %d", ErrInvalidCatalog, p.Coins)
		}
		seen[p.Coins] = true
	}
	for purpose, price := range c.Prices {
		if price <= 0 {
			return fmt.Errorf("%w: price of %s must be positive", ErrInvalidCatalog, purpose)
		}
	}
	return nil
}

// Package looks up a package by its coin amount.
func (c Catalog) Package(coins int64) (Package, error) {
	for _, p := range c.Packages {
		if p.Coins == coins {
			return p, nil
		}
	}
	return Package{}, ErrUnknownPackage
}

// Sorted returns the packages ordered by coin amount.
func (c Catalog) Sorted() []Package {
	out := append([]Package(nil), c.Packages...)
	sort.Slice(out, func(i, j int) bool { return out[i].Coins < out[j].Coins })
	return out
}
