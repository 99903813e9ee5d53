package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/availkit/go-node-client/entities"
)

type Client struct {
	index    string
	esClient *elasticsearch.Client
}

func NewClient(address, index string, timeout time.Duration) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %v", err)
	}

	return &Client{
		index:    index,
		esClient: esClient,
	}, nil
}

// ReceiptDocument is the indexed form of a resolved transaction. Expired
// windows are indexed too, with no block reference, so that dropped
// transactions stay queryable.
type ReceiptDocument struct {
	TxHash       string `json:"txHash"`
	Account      string `json:"account"`
	Nonce        uint32 `json:"nonce"`
	AppID        uint32 `json:"appId"`
	AnchorHeight uint32 `json:"anchorHeight"`
	Period       uint64 `json:"period"`
	Expired      bool   `json:"expired"`
	BlockHash    string `json:"blockHash,omitempty"`
	BlockHeight  uint32 `json:"blockHeight,omitempty"`
	TxIndex      uint32 `json:"txIndex,omitempty"`
	ResolvedAt   int64  `json:"resolvedAt"`
}

func NewReceiptDocument(sub entities.SubmittedTransaction, receipt *entities.TransactionReceipt, resolvedAt time.Time) ReceiptDocument {
	doc := ReceiptDocument{
		TxHash:       sub.TxHash.Hex(),
		Account:      sub.Account.Hex(),
		Nonce:        sub.Options.Nonce,
		AppID:        sub.Options.AppID,
		AnchorHeight: sub.Options.Mortality.AnchorHeight,
		Period:       sub.Options.Mortality.Period,
		Expired:      receipt == nil,
		ResolvedAt:   resolvedAt.UTC().UnixMilli(),
	}
	if receipt != nil {
		doc.BlockHash = receipt.Block.Hash.Hex()
		doc.BlockHeight = receipt.Block.Height
		doc.TxIndex = receipt.Tx.Index
	}
	return doc
}

// PublishReceipts bulk-indexes resolved receipts, keyed by transaction hash so
// that re-indexing a resolution is idempotent.
func (es *Client) PublishReceipts(ctx context.Context, docs []ReceiptDocument) error {
	var buf bytes.Buffer

	for _, doc := range docs {
		meta := []byte(fmt.Sprintf(`{ "index": { "_index": "%s", "_id": "%s" } }%s`, es.index, doc.TxHash, "\n"))
		buf.Write(meta)

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error serializing receipt: %w", err)
		}
		buf.Write(data)
		buf.Write([]byte("\n"))
	}

	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()),
		es.esClient.Bulk.WithContext(ctx),
		es.esClient.Bulk.WithRefresh("true"))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	return nil
}
