package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

// SemanticSearcher ranks passages by embedding similarity.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]*models.PassageHit, error)
}

// Result is one ranked passage.
type Result struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	Rank          int     `json:"rank"`
}

// Engine runs hybrid (keyword + semantic) passage search.
type Engine struct {
	semantic SemanticSearcher
	keyword  keyword.PassageIndex
}

// NewEngine creates a search engine. Either side may be nil, in which case
// its weight is ignored.
func NewEngine(semantic SemanticSearcher, kw keyword.PassageIndex) *Engine {
	return &Engine{semantic: semantic, keyword: kw}
}

// Search runs both searches concurrently and returns fused results.
func (e *Engine) Search(ctx context.Context, query *Query) ([]*Result, error) {
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}
	if e.keyword == nil {
		query.KeywordWeight = 0
	}
	if e.semantic == nil {
		query.SemanticWeight = 0
	}
	candidates := query.Limit * candidateFactor

	var (
		keywordHits  []*models.PassageHit
		semanticHits []*models.PassageHit
		errChan      = make(chan error, 2)
		wg           sync.WaitGroup
	)

	if query.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := e.keyword.Search(ctx, query.Text, candidates, &keyword.SearchOptions{Fuzzy: query.Fuzzy})
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordHits = hits
		}()
	}

	if query.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := e.semantic.Search(ctx, query.Text, candidates)
			if err != nil {
				errChan <- fmt.Errorf("semantic search failed: %w", err)
				return
			}
			semanticHits = hits
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	texts := make(map[string]string, len(keywordHits)+len(semanticHits))
	for _, h := range keywordHits {
		texts[h.ID] = h.Text
	}
	for _, h := range semanticHits {
		texts[h.ID] = h.Text
	}

	keywordScores := NormalizeKeywordScores(keywordHits)
	semanticScores := NormalizeSemanticScores(semanticHits)
	fused := Fuse(keywordScores, semanticScores, query.KeywordWeight, query.SemanticWeight)
	if len(fused) > query.Limit {
		fused = fused[:query.Limit]
	}

	results := make([]*Result, 0, len(fused))
	for i, f := range fused {
		results = append(results, &Result{
			ID:            f.ID,
			Text:          Highlight(texts[f.ID], query.SnippetLength),
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          i + 1,
		})
	}
	return results, nil
}
