package prefs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Service reads and writes declared preferences, applying defaults for keys
// never written.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns every declared preference with its effective value.
func (s *Service) List(ctx context.Context) ([]Preference, error) {
	out := make([]Preference, 0, len(Registry))
	for _, def := range Registry {
		value, err := s.effective(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, Preference{Key: def.Key, Value: value})
	}
	return out, nil
}

// Get returns one preference's effective value. shared.ErrNotFound for
// undeclared keys.
func (s *Service) Get(ctx context.Context, key string) (Preference, error) {
	def, ok := Lookup(key)
	if !ok {
		return Preference{}, shared.ErrNotFound
	}
	value, err := s.effective(ctx, def)
	if err != nil {
		return Preference{}, err
	}
	return Preference{Key: def.Key, Value: value}, nil
}

// Set validates and stores a preference value, returning the previous
// effective value.
func (s *Service) Set(ctx context.Context, key, value string) (Preference, string, error) {
	def, ok := Lookup(key)
	if !ok {
		return Preference{}, "", shared.ErrNotFound
	}
	if err := def.Validate(value); err != nil {
		return Preference{}, "", err
	}
	previous, err := s.effective(ctx, def)
	if err != nil {
		return Preference{}, "", err
	}
	if err := s.repo.SetValue(ctx, def.Key, value); err != nil {
		return Preference{}, "", err
	}
	s.logger.Info("preference changed",
		slog.String("key", def.Key), slog.String("from", previous), slog.String("to", value))
	return Preference{Key: def.Key, Value: value}, previous, nil
}

// DefaultMargin returns the configured global default margin as a fraction.
func (s *Service) DefaultMargin(ctx context.Context) (float64, error) {
	pref, err := s.Get(ctx, KeyGlobalDefaultMargin)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(pref.Value, 64)
}

func (s *Service) effective(ctx context.Context, def Definition) (string, error) {
	value, err := s.repo.GetValue(ctx, def.Key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return def.Default, nil
		}
		return "", err
	}
	return value, nil
}
