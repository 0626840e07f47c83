package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/discourse-import/internal/categories"
	"git.home.luguber.info/inful/discourse-import/internal/config"
	"git.home.luguber.info/inful/discourse-import/internal/discourse"
	"git.home.luguber.info/inful/discourse-import/internal/fetch"
)

// CategoriesCmd implements the 'categories' command.
type CategoriesCmd struct {
	Base string `help:"Discourse instance URL" env:"DISCOURSE_BASE"`
}

func (c *CategoriesCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, func(cfg *config.Config) {
		setString(&cfg.Base, c.Base)
	})
	if err != nil {
		return err
	}
	return RunCategories(context.Background(), cfg, g.out())
}

// RunCategories prints one "id<TAB>path" line per category, ordered by id.
func RunCategories(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client := fetch.NewClient(cfg.HTTP)
	tree, err := categories.Build(ctx, discourse.NewClient(cfg.BaseURL(), client))
	if err != nil {
		return err
	}
	for _, id := range tree.IDs() {
		_, _ = fmt.Fprintf(out, "%d\t%s\n", id, tree[id])
	}
	return nil
}
