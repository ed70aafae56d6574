package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/telhawk-systems/logsearch/logsearch/internal/config"
	"github.com/telhawk-systems/logsearch/logsearch/internal/search"
)

// OpenSearchClient executes log search payloads against OpenSearch.
type OpenSearchClient struct {
	client *opensearch.Client
}

func NewOpenSearchClient(cfg config.OpenSearchConfig) (*OpenSearchClient, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearchClient{client: client}, nil
}

func (c *OpenSearchClient) Client() *opensearch.Client {
	return c.client
}

// Search runs payload and decodes the response envelope.
func (c *OpenSearchClient) Search(ctx context.Context, payload *search.Payload) (*search.Response, error) {
	buf, err := payload.Body.Encode()
	if err != nil {
		return nil, err
	}

	indexes := payload.Indexes
	if len(indexes) == 0 && payload.Index != "" {
		indexes = strings.Split(payload.Index, ",")
	}

	api := c.client.Search
	opts := []func(*opensearchapi.SearchRequest){
		api.WithContext(ctx),
		api.WithIndex(indexes...),
		api.WithBody(buf),
		api.WithSize(payload.Size),
		api.WithFrom(payload.From),
		api.WithIgnoreUnavailable(payload.IgnoreUnavailable),
		api.WithAllowNoIndices(payload.AllowNoIndices),
	}
	if payload.SearchType != "" {
		opts = append(opts, api.WithSearchType(payload.SearchType))
	}

	res, err := api(opts...)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	return search.DecodeResponse(res.Body)
}
