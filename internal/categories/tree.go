// Package categories flattens the forum's two-level category hierarchy into
// "parent/child" paths keyed by category id.
package categories

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"git.home.luguber.info/inful/discourse-import/internal/discourse"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
)

// Lister is the subset of discourse.Client used to walk categories.
type Lister interface {
	Categories(ctx context.Context, parentID int) ([]discourse.Category, error)
}

// Tree maps a category id to its path, e.g. 2 => "Dev/Tools".
type Tree map[int]string

// Build fetches the top-level categories and, for every category that
// exposes subcategories, its children. The endpoint only nests one level
// deep so no cycle handling is needed.
func Build(ctx context.Context, api Lister) (Tree, error) {
	top, err := api.Categories(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	tree := make(Tree, len(top))
	for _, c := range top {
		tree[c.ID] = c.Name
		if len(c.SubcategoryIDs) == 0 {
			continue
		}

		children, err := api.Categories(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list subcategories of %q: %w", c.Name, err)
		}
		for _, sc := range children {
			tree[sc.ID] = c.Name + "/" + sc.Name
		}
	}

	slog.Debug("Category tree built", slog.Int("categories", len(tree)))
	return tree, nil
}

// Segments returns the path of id split into its components. Unknown ids
// yield nil.
func (t Tree) Segments(id int) []string {
	p, ok := t[id]
	if !ok {
		slog.Warn("Topic references unknown category", logfields.Category(fmt.Sprint(id)))
		return nil
	}
	return strings.Split(p, "/")
}

// IDs returns the category ids in ascending order.
func (t Tree) IDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
