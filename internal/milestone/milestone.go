// Package milestone decides whether an order lands on one of the store's
// celebrated order counts (the 1st order, the 100th order and so on).
package milestone

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// IsMilestone reports whether ordinal matches one of thresholds exactly.
func IsMilestone(ordinal int, thresholds []int) bool {
	return slices.Contains(thresholds, ordinal)
}

// Ordinal is the position the next order takes given counted finalized orders.
func Ordinal(counted int) int { return counted + 1 }

type counter interface {
	CountOrders(ctx context.Context, statuses []orders.Status) (int, error)
	Milestones(ctx context.Context) ([]int, error)
}

// Evaluate computes, inside the caller's transaction, whether the order about
// to be finalized is a milestone. The order itself must not be counted yet.
func Evaluate(ctx context.Context, tx counter) (bool, int, error) {
	n, err := tx.CountOrders(ctx, orders.CountedStatuses)
	if err != nil {
		return false, 0, fmt.Errorf("count orders: %w", err)
	}
	thresholds, err := tx.Milestones(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("load milestones: %w", err)
	}
	ord := Ordinal(n)
	return IsMilestone(ord, thresholds), ord, nil
}

type file struct {
	Milestones []int `yaml:"milestones"`
}

// LoadFile reads thresholds from a YAML document of the form
//
//	milestones: [1, 100, 1000]
//
// Non-positive and duplicate values are rejected.
func LoadFile(path string) ([]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]int, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse milestones: %w", err)
	}
	seen := map[int]bool{}
	for _, v := range f.Milestones {
		if v <= 0 {
			return nil, fmt.Errorf("milestone %d: must be positive", v)
		}
		if seen[v] {
			return nil, fmt.Errorf("milestone %d: duplicate", v)
		}
		seen[v] = true
	}
	out := slices.Clone(f.Milestones)
	slices.Sort(out)
	return out, nil
}
