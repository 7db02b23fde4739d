package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"passos-predictor/internal/common/errors"
)

// ESIndexer bulk-indexes batch result rows.
type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewESIndexer(client *elasticsearch.Client, index string) *ESIndexer {
	return &ESIndexer{client: client, index: index}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// IndexBatch sends one bulk request. Every document is tagged with batch_id
// and keyed by "<batchID>-<position>".
func (i *ESIndexer) IndexBatch(ctx context.Context, batchID string, docs []map[string]interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for n, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_id": fmt.Sprintf("%s-%d", batchID, n)},
		}
		if err := enc.Encode(meta); err != nil {
			return errors.NewIndexingFailedError(i.index, err)
		}
		doc["batch_id"] = batchID
		if err := enc.Encode(doc); err != nil {
			return errors.NewIndexingFailedError(i.index, err)
		}
	}

	res, err := i.client.Bulk(
		bytes.NewReader(body.Bytes()),
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.index),
	)
	if err != nil {
		return errors.NewIndexingFailedError(i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewIndexingFailedError(i.index, fmt.Errorf("bulk request: %s", res.Status()))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return errors.NewIndexingFailedError(i.index, err)
	}
	if br.Errors {
		failed := 0
		var first string
		for _, item := range br.Items {
			for _, r := range item {
				if r.Status > 299 {
					if failed == 0 {
						first = r.Error.Reason
					}
					failed++
				}
			}
		}
		return errors.NewIndexingFailedError(i.index,
			fmt.Errorf("%d of %d documents rejected: %s", failed, len(docs), first))
	}
	return nil
}
