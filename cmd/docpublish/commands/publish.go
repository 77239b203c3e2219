package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Title    []string `short:"t" help:"Title for each file, in file order" required:""`
	Category []string `help:"Category key for each file, in file order (empty entries use the classifier)"`
	Files    []string `arg:"" help:"Documents to publish" type:"existingfile"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	items, err := p.items()
	if err != nil {
		return err
	}
	return RunPublish(context.Background(), g, cfg, items)
}

// items pairs files with titles and hints positionally.
func (p *PublishCmd) items() ([]upload.Item, error) {
	if len(p.Title) != len(p.Files) || (len(p.Category) > 0 && len(p.Category) != len(p.Files)) {
		return nil, errors.ValidationError("each file needs exactly one --title (and one --category when categories are given)").
			WithCode(upload.CodeInvalidMetadata).
			WithContext("files", len(p.Files)).
			WithContext("titles", len(p.Title)).
			WithContext("categories", len(p.Category)).
			Build()
	}

	items := make([]upload.Item, 0, len(p.Files))
	for i, path := range p.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
				WithContext("file", path).
				Build()
		}
		it := upload.Item{Content: data, DeclaredName: filepath.Base(path), Title: p.Title[i]}
		if len(p.Category) > 0 {
			it.CategoryHint = p.Category[i]
		}
		items = append(items, it)
	}
	return items, nil
}

// RunPublish publishes items through the same coordinator the server uses.
func RunPublish(ctx context.Context, g *Global, cfg *config.Config, items []upload.Item) error {
	rt, err := NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			slog.Warn("Failed to close runtime", logfields.Error(cerr))
		}
	}()

	res, err := rt.Coordinator.Publish(ctx, items)
	if err != nil {
		return err
	}
	g.Printf("%s", res.Summary())
	return nil
}
