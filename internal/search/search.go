package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/duadua/marketplace/internal/models"
)

// Index keeps the product search index in sync with the catalog. Only
// products in the open state are searchable; everything else is removed.
// A nil Index is valid and does nothing, so the catalog works without
// Elasticsearch.
type Index struct {
	ES   *elasticsearch.Client
	Name string
}

// Enabled reports whether a search backend is configured.
func (ix *Index) Enabled() bool {
	return ix != nil && ix.ES != nil
}

func (ix *Index) Sync(ctx context.Context, p *models.Product) error {
	if ix == nil || ix.ES == nil {
		return nil
	}
	if !p.Open() {
		return ix.Remove(ctx, p.ID)
	}

	doc, err := json.Marshal(map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
		"price":       p.Price,
	})
	if err != nil {
		return err
	}

	res, err := ix.ES.Index(
		ix.Name,
		bytes.NewReader(doc),
		ix.ES.Index.WithContext(ctx),
		ix.ES.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.Status())
	}
	return nil
}

func (ix *Index) Remove(ctx context.Context, productID uint) error {
	if ix == nil || ix.ES == nil {
		return nil
	}
	res, err := ix.ES.Delete(
		ix.Name,
		strconv.FormatUint(uint64(productID), 10),
		ix.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 404 just means the product was never indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("remove product %d: %s", productID, res.Status())
	}
	return nil
}

type Hit struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func (ix *Index) Search(ctx context.Context, query string, from, size int) (int64, []Hit, error) {
	if ix == nil || ix.ES == nil {
		return 0, nil, fmt.Errorf("search index not configured")
	}

	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := ix.ES.Search(
		ix.ES.Search.WithContext(ctx),
		ix.ES.Search.WithIndex(ix.Name),
		ix.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", strings.TrimSpace(res.Status()))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Hit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	hits := make([]Hit, len(r.Hits.Hits))
	for i, h := range r.Hits.Hits {
		hits[i] = h.Source
	}
	return r.Hits.Total.Value, hits, nil
}
