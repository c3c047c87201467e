package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
)

type scanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// GlossaryStore reads the glossary term table. The pipeline never writes it.
type GlossaryStore struct {
	api   scanAPI
	table string
	log   zerolog.Logger
}

func NewGlossaryStore(awsCfg aws.Config, table string, log zerolog.Logger) *GlossaryStore {
	return &GlossaryStore{
		api:   dynamodb.NewFromConfig(awsCfg),
		table: table,
		log:   log.With().Str("component", "glossary-store").Logger(),
	}
}

// NewGlossaryStoreWithAPI builds a GlossaryStore around an explicit API, for tests.
func NewGlossaryStoreWithAPI(api scanAPI, table string, log zerolog.Logger) *GlossaryStore {
	return &GlossaryStore{api: api, table: table, log: log}
}

// All returns every glossary term via a paginated scan. An empty table name
// means the glossary is not configured; that yields no terms, not an error.
func (g *GlossaryStore) All(ctx context.Context) ([]model.GlossaryTerm, error) {
	if g.table == "" {
		return nil, nil
	}

	var terms []model.GlossaryTerm
	var startKey map[string]types.AttributeValue
	for {
		out, err := g.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &g.table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("glossary scan: %w", err)
		}

		var page []model.GlossaryTerm
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal glossary page: %w", err)
		}
		terms = append(terms, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return terms, nil
}

// GlossaryCache caches the full term set in-process. Terms only influence
// prompt hints, so a stale read during the TTL window is acceptable.
type GlossaryCache struct {
	fetch func(ctx context.Context) ([]model.GlossaryTerm, error)
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger

	mu        sync.Mutex
	terms     []model.GlossaryTerm
	fetchedAt time.Time
}

const glossaryTTL = 10 * time.Minute

func NewGlossaryCache(store *GlossaryStore, log zerolog.Logger) *GlossaryCache {
	return &GlossaryCache{
		fetch: store.All,
		ttl:   glossaryTTL,
		now:   time.Now,
		log:   log.With().Str("component", "glossary-cache").Logger(),
	}
}

// NewGlossaryCacheWithFetch builds a cache around an explicit fetch function,
// for tests.
func NewGlossaryCacheWithFetch(fetch func(ctx context.Context) ([]model.GlossaryTerm, error), ttl time.Duration, now func() time.Time, log zerolog.Logger) *GlossaryCache {
	return &GlossaryCache{fetch: fetch, ttl: ttl, now: now, log: log}
}

// Terms returns the cached term set, refreshing when the TTL has expired.
// A refresh failure falls back to the previous snapshot when one exists.
func (c *GlossaryCache) Terms(ctx context.Context) ([]model.GlossaryTerm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.terms, nil
	}

	terms, err := c.fetch(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			c.log.Warn().Err(err).Msg("glossary refresh failed, serving stale terms")
			return c.terms, nil
		}
		return nil, err
	}

	c.terms = terms
	c.fetchedAt = c.now()
	return c.terms, nil
}
