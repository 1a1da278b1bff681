package formfill

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrAssetNotFound is returned by a Source for assets that do not exist.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrTemplateNotFound means rendering cannot start at all.
	ErrTemplateNotFound = fmt.Errorf("template: %w", ErrAssetNotFound)
)

// Source reads named assets.
type Source interface {
	ReadAsset(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads assets from a local directory.
type DirSource string

func (d DirSource) ReadAsset(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrAssetNotFound)
	}
	return b, err
}

// AssetNames locates the assets within a Source.
type AssetNames struct {
	Template        string
	Font            string
	Mapping         string
	MappingFallback string
}

// Assets are loaded once and shared read-only by every request.
type Assets struct {
	Template    []byte
	Font        []byte // nil when no font is available
	Mapping     *Mapping
	MappingName string // asset the mapping was read from, empty when none
}

// LoadAssets reads the template, font and mapping concurrently. Only a missing
// template is an error; without a font the core font is used and without a
// mapping nothing is drawn.
func LoadAssets(ctx context.Context, src Source, names AssetNames) (*Assets, error) {
	a := &Assets{Mapping: &Mapping{Fields: map[string]Descriptor{}}}
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		b, err := src.ReadAsset(gctx, names.Template)
		if errors.Is(err, ErrAssetNotFound) {
			return fmt.Errorf("%s: %w", names.Template, ErrTemplateNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", names.Template, err)
		}
		a.Template = b
		return nil
	})

	eg.Go(func() error {
		if names.Font == "" {
			return nil
		}
		b, err := src.ReadAsset(gctx, names.Font)
		if errors.Is(err, ErrAssetNotFound) {
			slog.Warn("Font not found, falling back to core font.", "font", names.Font)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read font %s: %w", names.Font, err)
		}
		a.Font = b
		return nil
	})

	eg.Go(func() error {
		for _, name := range []string{names.Mapping, names.MappingFallback} {
			if name == "" {
				continue
			}
			b, err := src.ReadAsset(gctx, name)
			if errors.Is(err, ErrAssetNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read mapping %s: %w", name, err)
			}
			m, err := ParseMapping(name, b)
			if err != nil {
				return err
			}
			a.Mapping = m
			a.MappingName = name
			return nil
		}
		slog.Warn("No mapping found, nothing will be drawn.", "mapping", names.Mapping, "fallback", names.MappingFallback)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return a, nil
}
