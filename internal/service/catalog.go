package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cubomagico/memoria/internal/extraction"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const DefaultCatalogCacheSize = 256

// CatalogProvider resolves the extraction engine for a project. A project
// may override the built-in pattern catalog with <dir>/<project_id>.yaml;
// engines are cached per project and rebuilt when the file changes.
type CatalogProvider struct {
	dir      string
	fallback *extraction.Engine
	cache    *lru.Cache[uuid.UUID, cachedEngine]
	logger   *zap.Logger
}

// cachedEngine remembers which version of the override file built engine.
// A zero modTime means there was no file.
type cachedEngine struct {
	engine  *extraction.Engine
	modTime time.Time
	size    int64
}

func NewCatalogProvider(dir string, size int, logger *zap.Logger) (*CatalogProvider, error) {
	if size <= 0 {
		size = DefaultCatalogCacheSize
	}
	cache, err := lru.New[uuid.UUID, cachedEngine](size)
	if err != nil {
		return nil, err
	}
	return &CatalogProvider{
		dir:      dir,
		fallback: extraction.NewEngine(nil),
		cache:    cache,
		logger:   logger,
	}, nil
}

// Engine returns the project's engine. A malformed override file is an
// error rather than a silent fallback to the default catalog.
func (p *CatalogProvider) Engine(projectID uuid.UUID) (*extraction.Engine, error) {
	if p.dir == "" {
		return p.fallback, nil
	}

	path := filepath.Join(p.dir, projectID.String()+".yaml")
	info, err := os.Stat(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	var version cachedEngine
	if info != nil {
		version = cachedEngine{modTime: info.ModTime(), size: info.Size()}
	}

	if c, ok := p.cache.Get(projectID); ok {
		if c.modTime.Equal(version.modTime) && c.size == version.size {
			return c.engine, nil
		}
		p.Invalidate(projectID)
		p.logger.Info("project catalog changed", zap.String("project_id", projectID.String()))
	}

	if info == nil {
		version.engine = p.fallback
		p.cache.Add(projectID, version)
		return p.fallback, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	catalog, err := extraction.LoadCatalogYAML(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	version.engine = extraction.NewEngine(catalog)
	p.cache.Add(projectID, version)
	p.logger.Info("project catalog loaded",
		zap.String("project_id", projectID.String()),
		zap.Int("entries", len(catalog.Entries())))
	return version.engine, nil
}

// Invalidate drops the cached engine so the next call rereads the file.
func (p *CatalogProvider) Invalidate(projectID uuid.UUID) {
	p.cache.Remove(projectID)
}
