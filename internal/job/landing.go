package job

import (
	"context"
	"fmt"
	"time"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
	"github.com/Aiuser8/defi-alive-jobs/internal/store"
)

// upsertFn is one of the store session's typed landing upserts.
type upsertFn func(sess *store.Session, ctx context.Context, rec quality.Record, observedAt time.Time) error

var upsertsByKind = map[string]upsertFn{
	quality.KindPrice: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertPrice(ctx, r, t)
	},
	quality.KindLendingMarket: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertLendingMarket(ctx, r, t)
	},
	quality.KindProtocolTVL: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertProtocolTVL(ctx, r, t)
	},
	quality.KindETFFlow: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertETFFlow(ctx, r, t)
	},
	quality.KindStablecoinCap: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertStablecoinCap(ctx, r, t)
	},
	quality.KindLiquidityPool: func(s *store.Session, ctx context.Context, r quality.Record, t time.Time) error {
		return s.UpsertPool(ctx, r, t)
	},
}

// storeLanding adapts the Postgres store to the job's Landing contract for
// one entity kind.
type storeLanding struct {
	store *store.Store
	kind  string
}

// NewStoreLanding binds an entity kind's landing writes to the store.
func NewStoreLanding(s *store.Store, kind string) (Landing, error) {
	if _, ok := upsertsByKind[kind]; !ok {
		return nil, fmt.Errorf("no landing upsert for entity kind %q", kind)
	}
	return &storeLanding{store: s, kind: kind}, nil
}

func (l *storeLanding) RunSession(ctx context.Context, fn func(ctx context.Context, sess LandingSession) error) error {
	return l.store.WithSession(ctx, func(ctx context.Context, sess *store.Session) error {
		return fn(ctx, &storeSession{sess: sess, kind: l.kind})
	})
}

type storeSession struct {
	sess *store.Session
	kind string
}

func (s *storeSession) Upsert(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	return upsertsByKind[s.kind](s.sess, ctx, rec, observedAt)
}

func (s *storeSession) Priors(ctx context.Context, ids []string) (map[string]map[string]float64, error) {
	return s.sess.PriorNumerics(ctx, s.kind, ids)
}
