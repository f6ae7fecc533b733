package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

const generationKey = "rv:history:gen"

// Service serves history listings, caching first pages in Redis. Invalidation
// bumps a generation counter embedded in every cache key, so a ledger write
// makes all cached pages unreachable at once without scanning for them.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service. cache may be nil to disable caching.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Purchases lists purchase events for the filter, newest first.
func (s *Service) Purchases(ctx context.Context, f Filter, page shared.Keyset) ([]PurchaseEvent, error) {
	if !s.cacheable(page) {
		return s.repo.ListPurchases(ctx, f, page)
	}
	return cached(ctx, s, fmt.Sprintf("purchases:u%d:b%s", f.UserID, f.Barcode),
		func(ctx context.Context) ([]PurchaseEvent, error) {
			return s.repo.ListPurchases(ctx, f, page)
		})
}

// Deposits lists deposit events for the filter, newest first.
func (s *Service) Deposits(ctx context.Context, f Filter, page shared.Keyset) ([]DepositEvent, error) {
	if !s.cacheable(page) {
		return s.repo.ListDeposits(ctx, f, page)
	}
	return cached(ctx, s, fmt.Sprintf("deposits:u%d", f.UserID),
		func(ctx context.Context) ([]DepositEvent, error) {
			return s.repo.ListDeposits(ctx, f, page)
		})
}

// Purchase resolves a single purchase event. userID 0 skips account scoping.
func (s *Service) Purchase(ctx context.Context, purchaseID, userID int64) (PurchaseEvent, error) {
	return s.repo.FindPurchaseByID(ctx, purchaseID, userID)
}

// Deposit resolves a single deposit event. userID 0 skips account scoping.
func (s *Service) Deposit(ctx context.Context, depositID, userID int64) (DepositEvent, error) {
	return s.repo.FindDepositByID(ctx, depositID, userID)
}

// Invalidate makes all cached pages stale. Wired into the ledger service's
// after-write hook.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, generationKey).Err(); err != nil {
		s.logger.Warn("history cache invalidation failed", slog.Any("error", err))
	}
}

// Only the default first page is worth caching; deeper keyset windows are
// rare and cheap enough to query directly.
func (s *Service) cacheable(page shared.Keyset) bool {
	return s.cache != nil && page.Before == 0 && page.Limit == shared.DefaultPageSize
}

func cached[T any](ctx context.Context, s *Service, suffix string, fill func(context.Context) ([]T, error)) ([]T, error) {
	gen, err := s.cache.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Warn("history cache generation read failed", slog.Any("error", err))
		return fill(ctx)
	}
	key := fmt.Sprintf("rv:history:%d:%s", gen, suffix)

	if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var events []T
		if err := json.Unmarshal(raw, &events); err == nil {
			return events, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		events, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(events); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("history cache write failed", slog.Any("error", err))
			}
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}
