// Package share relays editor contents to GitHub gists and remembers what it
// shared.
package share

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	apperrors "github.com/kast-lang/playground/internal/common/errors"
	"github.com/kast-lang/playground/internal/common/logger"
)

const defaultRecentLimit = 20

// Service creates shares.
type Service struct {
	client          GistClient
	store           *Store
	defaultFilename string
	logger          *logger.Logger
}

// NewService creates a share service. A nil client means the relay has no
// credentials and every Create fails with SERVICE_UNAVAILABLE.
func NewService(client GistClient, store *Store, defaultFilename string, log *logger.Logger) *Service {
	if defaultFilename == "" {
		defaultFilename = "main.ks"
	}
	return &Service{
		client:          client,
		store:           store,
		defaultFilename: defaultFilename,
		logger:          log.WithComponent("share"),
	}
}

// Create publishes code as a gist and records it.
func (s *Service) Create(ctx context.Context, code, filename string) (*Share, error) {
	if code == "" {
		return nil, apperrors.BadRequest("Missing code")
	}
	if s.client == nil {
		return nil, apperrors.ServiceUnavailable("share relay")
	}
	if filename == "" {
		filename = s.defaultFilename
	}

	url, err := s.client.CreateGist(ctx, filename, code)
	if err != nil {
		s.logger.Error("gist creation failed", zap.String("filename", filename), zap.Error(err))
		return nil, apperrors.Upstream("Failed to create gist", err)
	}

	sh := &Share{Filename: filename, URL: url, Size: utf8.RuneCountInString(code)}
	if s.store != nil {
		if err := s.store.Record(ctx, sh); err != nil {
			// the gist exists either way; history is best effort
			s.logger.Warn("failed to record share", zap.String("url", url), zap.Error(err))
		}
	}
	s.logger.Info("share created", zap.String("url", url), zap.String("filename", filename))
	return sh, nil
}

// Recent lists the newest shares.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Share, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if s.store == nil {
		return []*Share{}, nil
	}
	shares, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.InternalError("failed to list shares", err)
	}
	return shares, nil
}
