// Package search keeps the contact index in Elasticsearch and answers
// per-owner full-text queries against it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/mkostiuk/contact_service/internal/models"
)

type contactDoc struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthday  string `json:"birthday"`
}

func docFromContact(ct models.Contact) contactDoc {
	return contactDoc{
		ID:        ct.ID,
		UserID:    ct.UserID,
		FirstName: ct.FirstName,
		LastName:  ct.LastName,
		Email:     ct.Email,
		Phone:     ct.Phone,
		Birthday:  ct.Birthday,
	}
}

func IndexContact(ctx context.Context, es *elasticsearch.Client, index string, ct models.Contact) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(docFromContact(ct)); err != nil {
		return fmt.Errorf("index contact: %w", err)
	}

	res, err := es.Index(
		index,
		&buf,
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.Itoa(int(ct.ID))),
	)
	if err != nil {
		return fmt.Errorf("index contact: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index contact: %s", res.Status())
	}
	return nil
}

func DeleteContact(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	res, err := es.Delete(
		index,
		strconv.Itoa(int(id)),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete contact doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete contact doc: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over the owner's contacts.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, userID uint, from, size int) (int64, []models.Contact, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"first_name^2", "last_name^2", "email"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source contactDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	contacts := make([]models.Contact, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		contacts[i] = models.Contact{
			ID:        hit.Source.ID,
			UserID:    hit.Source.UserID,
			FirstName: hit.Source.FirstName,
			LastName:  hit.Source.LastName,
			Email:     hit.Source.Email,
			Phone:     hit.Source.Phone,
			Birthday:  hit.Source.Birthday,
		}
	}
	return r.Hits.Total.Value, contacts, nil
}
