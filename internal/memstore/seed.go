package memstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type seedFile struct {
	Products []struct {
		ID                string `yaml:"id"`
		SKU               string `yaml:"sku"`
		Name              string `yaml:"name"`
		PriceCents        int64  `yaml:"price_cents"`
		Stock             int    `yaml:"stock"`
		LowStockThreshold int    `yaml:"low_stock_threshold"`
	} `yaml:"products"`
	Accounts []struct {
		ID    string `yaml:"id"`
		Email string `yaml:"email"`
	} `yaml:"accounts"`
}

// LoadSeed fills the store with the catalog and accounts of a YAML file:
//
//	products:
//	  - {id: p1, sku: SOAP, name: Black soap, price_cents: 2500, stock: 5}
//	accounts:
//	  - {id: a1, email: ada@example.com}
func (s *Store) LoadSeed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Seed(raw)
}

func (s *Store) Seed(raw []byte) error {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	for _, p := range f.Products {
		if p.ID == "" {
			return fmt.Errorf("seed product %q: missing id", p.Name)
		}
		if p.PriceCents < 0 || p.Stock < 0 {
			return fmt.Errorf("seed product %s: negative price or stock", p.ID)
		}
	}
	for _, a := range f.Accounts {
		if a.ID == "" {
			return fmt.Errorf("seed account %q: missing id", a.Email)
		}
	}

	for _, p := range f.Products {
		s.PutProduct(orders.Product{
			ID:                p.ID,
			SKU:               p.SKU,
			Name:              p.Name,
			PriceCents:        p.PriceCents,
			Stock:             p.Stock,
			LowStockThreshold: p.LowStockThreshold,
		})
	}
	for _, a := range f.Accounts {
		s.PutAccount(a.ID, a.Email)
	}
	return nil
}
