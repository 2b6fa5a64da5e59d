package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Payload is one successfully retrieved subscription body, tagged with its
// originating source so the parser can pick a decoding strategy.
type Payload struct {
	Source types.Source
	Body   []byte
}

// Fetcher retrieves subscription payloads. Each source fails independently;
// a batch never aborts.
type Fetcher struct {
	client *http.Client
	log    zerolog.Logger
}

func New(cfg types.FetchConf, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		log: log,
	}
}

// FetchAll retrieves every source concurrently and returns the payloads that
// succeeded. Failed sources are logged and skipped.
func (f *Fetcher) FetchAll(ctx context.Context, sources []types.Source) []Payload {
	var wg sync.WaitGroup
	payloadChan := make(chan Payload, len(sources))

	for _, src := range sources {
		wg.Add(1)
		go func(src types.Source) {
			defer wg.Done()
			payload, err := f.fetchOne(ctx, src)
			if err != nil {
				f.log.Warn().Err(err).Str("url", src.URL).Msg("Source fetch failed, skipping.")
				return
			}
			f.log.Info().Str("url", src.URL).Int("bytes", len(payload.Body)).Msg("Source fetched.")
			payloadChan <- payload
		}(src)
	}

	wg.Wait()
	close(payloadChan)

	payloads := make([]Payload, 0, len(sources))
	for p := range payloadChan {
		payloads = append(payloads, p)
	}
	return payloads
}

func (f *Fetcher) fetchOne(ctx context.Context, src types.Source) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Payload{}, fmt.Errorf("received non-success status code (%d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Payload{Source: src, Body: body}, nil
}
