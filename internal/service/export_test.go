package service

import (
	"context"

	"blockdoc/internal/dbclient"
	"blockdoc/internal/domain"
)

// Hooks for the _test package.

func SetInspector(s *RenderService, f func(path string) (int, error)) { s.inspect = f }

func SetOpener(s *RenderService, f func(path string) error) { s.open = f }

func SetFetcher(s *TableService, f func(ctx context.Context, q domain.TableQuery) (*dbclient.Table, error)) {
	s.fetch = f
}
