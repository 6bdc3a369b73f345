package catalogue

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
)

const (
	userAgent       = "spigell/programme-advisor"
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// RESTStore reads the catalogue from a PostgREST-style endpoint returning a JSON array of rows.
type RESTStore struct {
	url        string
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

// restRow accepts snake_case column names and loosely typed values.
type restRow struct {
	Title       string `mapstructure:"title"`
	Category    string `mapstructure:"category"`
	Description string `mapstructure:"description"`
	URL         string `mapstructure:"url"`
	Fee         string `mapstructure:"fee"`
	Format      string `mapstructure:"format"`
	Location    string `mapstructure:"location"`
	StartDate   string `mapstructure:"start_date"`
}

// NewRESTStore creates a store for url. token is sent as a bearer token when set.
func NewRESTStore(url, token string, logger *zap.Logger) *RESTStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTStore{
		url:    url,
		token:  token,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

// ListEntries fetches every row from the endpoint.
func (s *RESTStore) ListEntries(ctx context.Context) (contract.Catalogue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	s.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode programmes: %w", err)
	}

	entries := make(contract.Catalogue, 0, len(rows))
	for _, raw := range rows {
		var row restRow
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &row,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("decode programme row: %w", err)
		}
		entries = append(entries, contract.CatalogueEntry{
			Title:       strings.TrimSpace(row.Title),
			Category:    row.Category,
			Description: row.Description,
			URL:         row.URL,
			Fee:         row.Fee,
			Format:      row.Format,
			Location:    row.Location,
			StartDate:   row.StartDate,
		})
	}

	return entries, nil
}

func (s *RESTStore) setHeaders(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.token))
		req.Header.Set("apikey", s.token)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}
