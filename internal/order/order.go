// Package order derives ordering keys from item titles and sorts board items
// by trailing number, by embedded color code or by reading order.
package order

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"board-tiler/internal/geom"

	"golang.org/x/text/cases"
)

// Entry is an orderable item: a placeable with a display name.
type Entry interface {
	geom.Placeable
	Name() string
}

// ByNumber sorts items by the trailing number in their names. Items with a
// number come first, ascending, then by case-folded name and input order.
// Items without a number follow, by case-folded name and input order.
func ByNumber[T Entry](items []T) []T {
	type keyed struct {
		item T
		idx  int
		num  int64
		has  bool
		fold string
	}
	folder := cases.Fold()
	ks := make([]keyed, len(items))
	for i, it := range items {
		n, ok := ExtractTrailingNumber(it.Name())
		ks[i] = keyed{item: it, idx: i, num: n, has: ok, fold: folder.String(it.Name())}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		if a.has != b.has {
			if a.has {
				return -1
			}
			return 1
		}
		if a.has {
			if c := cmp.Compare(a.num, b.num); c != 0 {
				return c
			}
		}
		if c := cmp.Compare(a.fold, b.fold); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// ByColor sorts items by the color code embedded in their titles: gray group
// before chromatic, then lighter before darker, then less saturated first.
// Items without a code follow in input order. When no item carries a code
// the result is ByGeometry.
func ByColor[T Entry](items []T, grayThreshold int) []T {
	type keyed struct {
		item T
		idx  int
		code ColorCode
		has  bool
	}
	ks := make([]keyed, len(items))
	coded := false
	for i, it := range items {
		code, _, ok := ParseColorTitle(it.Name(), grayThreshold)
		ks[i] = keyed{item: it, idx: i, code: code, has: ok}
		coded = coded || ok
	}
	if !coded {
		return ByGeometry(items)
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		if a.has != b.has {
			if a.has {
				return -1
			}
			return 1
		}
		if a.has {
			if c := cmp.Compare(a.code.Group, b.code.Group); c != 0 {
				return c
			}
			if c := cmp.Compare(a.code.Brightness, b.code.Brightness); c != 0 {
				return c
			}
			if c := cmp.Compare(a.code.Saturation, b.code.Saturation); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// ByGeometry is strict row-major reading order: y ascending, then x. No
// tolerance band is applied; ties keep input order.
func ByGeometry[T geom.Placeable](items []T) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		ca, cb := a.Center(), b.Center()
		if c := cmp.Compare(ca.Y, cb.Y); c != 0 {
			return c
		}
		return cmp.Compare(ca.X, cb.X)
	})
	return out
}

// ReadingOrder returns item indices in tolerance-band reading order. Items are
// scanned top to bottom; an item joins the current row when its center lies
// within half the shorter height of the row's first item, and each row is then
// read left to right.
func ReadingOrder[T geom.Placeable](items []T) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		ca, cb := items[a].Center(), items[b].Center()
		if c := cmp.Compare(ca.Y, cb.Y); c != 0 {
			return c
		}
		return cmp.Compare(ca.X, cb.X)
	})

	out := make([]int, 0, len(idx))
	for start := 0; start < len(idx); {
		anchor := items[idx[start]]
		end := start + 1
		for end < len(idx) {
			it := items[idx[end]]
			tol := math.Min(anchor.Size().H, it.Size().H) / 2
			if math.Abs(it.Center().Y-anchor.Center().Y) > tol {
				break
			}
			end++
		}
		row := slices.Clone(idx[start:end])
		slices.SortStableFunc(row, func(a, b int) int {
			return cmp.Compare(items[a].Center().X, items[b].Center().X)
		})
		out = append(out, row...)
		start = end
	}
	return out
}

// SequentialNames names the unnamed items after their rank ("1", "2", ...) in
// ReadingOrder. Named items keep their names. The result maps item index to
// the new name and is empty when every item already has a name. Callers
// persist the names before ordering.
func SequentialNames[T Entry](items []T) map[int]string {
	names := make(map[int]string)
	missing := false
	for _, it := range items {
		if it.Name() == "" {
			missing = true
			break
		}
	}
	if !missing {
		return names
	}
	for rank, i := range ReadingOrder(items) {
		if items[i].Name() == "" {
			names[i] = strconv.Itoa(rank + 1)
		}
	}
	return names
}
