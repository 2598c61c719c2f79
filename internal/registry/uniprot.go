package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/protrecon/internal/protein"
)

// DefaultUniProtURL is the public UniProt REST endpoint.
const DefaultUniProtURL = "https://rest.uniprot.org"

// UniProtConfig configures UniProtSource.
type UniProtConfig struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures consecutive transient failures open the breaker for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Logger *slog.Logger
}

// DefaultUniProtConfig returns production settings.
func DefaultUniProtConfig() UniProtConfig {
	return UniProtConfig{
		BaseURL:         DefaultUniProtURL,
		Timeout:         30 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  60 * time.Second,
	}
}

// UniProtSource queries the UniProtKB search endpoint. Isoform results are
// folded into their parent entry and chains are derived from Chain features.
type UniProtSource struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewUniProtSource creates a source for cfg.
func NewUniProtSource(cfg UniProtConfig) *UniProtSource {
	def := DefaultUniProtConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "uniprot",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Only transient failures count against the registry.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
	})

	return &UniProtSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Open sends the search request. The returned session owns the response
// body until Release.
func (s *UniProtSource) Open(ctx context.Context, accession string) (Session, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.do(ctx, accession)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, MarkTransient(err)
		}
		return nil, err
	}
	resp := res.(*http.Response)
	if resp.StatusCode == http.StatusNotFound {
		return &sliceSession{entries: []protein.ExternalEntry{}, release: resp.Body.Close}, nil
	}
	return &uniprotSession{body: resp.Body}, nil
}

func (s *UniProtSource) do(ctx context.Context, accession string) (*http.Response, error) {
	q := url.Values{}
	q.Set("query", "accession:"+accession)
	q.Set("format", "json")
	q.Set("includeIsoform", "true")
	endpoint := s.baseURL + "/uniprotkb/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, MarkTransient(fmt.Errorf("execute request: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNotFound:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		drain(resp.Body)
		return nil, MarkTransient(fmt.Errorf("registry status %s", resp.Status))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("registry status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}

type uniprotSession struct {
	body io.ReadCloser
}

func (s *uniprotSession) Entries(ctx context.Context) ([]protein.ExternalEntry, error) {
	var page searchPage
	if err := json.NewDecoder(s.body).Decode(&page); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || (ctx.Err() == nil && isNetError(err)) {
			return nil, MarkTransient(fmt.Errorf("read response: %w", err))
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return page.entries(), nil
}

func (s *uniprotSession) Release() error {
	return s.body.Close()
}

func isNetError(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne)
}

// searchPage is the subset of the UniProtKB JSON format we read.
type searchPage struct {
	Results []uniprotEntry `json:"results"`
}

type uniprotEntry struct {
	PrimaryAccession    string   `json:"primaryAccession"`
	SecondaryAccessions []string `json:"secondaryAccessions"`
	Organism            struct {
		TaxonID int `json:"taxonId"`
	} `json:"organism"`
	Sequence struct {
		Value string `json:"value"`
		CRC64 string `json:"crc64"`
	} `json:"sequence"`
	Features []struct {
		Type      string `json:"type"`
		FeatureID string `json:"featureId"`
		Location  struct {
			Start struct {
				Value int `json:"value"`
			} `json:"start"`
			End struct {
				Value int `json:"value"`
			} `json:"end"`
		} `json:"location"`
	} `json:"features"`
	Comments []struct {
		CommentType string `json:"commentType"`
		Isoforms    []struct {
			IsoformIDs            []string `json:"isoformIds"`
			IsoformSequenceStatus string   `json:"isoformSequenceStatus"`
		} `json:"isoforms"`
	} `json:"comments"`
}

// displayedIsoforms returns the sorted isoform ids marked as the canonical
// ("Displayed") sequence.
func (u uniprotEntry) displayedIsoforms() []string {
	out := []string{}
	for _, c := range u.Comments {
		if c.CommentType != "ALTERNATIVE PRODUCTS" {
			continue
		}
		for _, iso := range c.Isoforms {
			if iso.IsoformSequenceStatus != "Displayed" {
				continue
			}
			out = append(out, iso.IsoformIDs...)
		}
	}
	sort.Strings(out)
	return out
}

func (u uniprotEntry) chains() []protein.Variant {
	out := []protein.Variant{}
	runes := []rune(u.Sequence.Value)
	for _, f := range u.Features {
		if f.Type != "Chain" || f.FeatureID == "" {
			continue
		}
		v := protein.Variant{
			Accession: u.PrimaryAccession + protein.TranscriptSeparator + f.FeatureID,
			Kind:      protein.KindChain,
		}
		start, end := f.Location.Start.Value, f.Location.End.Value
		if start >= 1 && end >= start && end <= len(runes) {
			v.Sequence = string(runes[start-1 : end])
		}
		out = append(out, v)
	}
	return out
}

// entries folds isoform results into their parent entries. Isoforms whose
// parent is absent from the page get a stub parent carrying only the
// accession and organism.
func (p searchPage) entries() []protein.ExternalEntry {
	out := []protein.ExternalEntry{}
	index := map[string]int{}
	var isoforms []uniprotEntry

	for _, u := range p.Results {
		if protein.IsTranscriptAccession(u.PrimaryAccession) {
			isoforms = append(isoforms, u)
			continue
		}
		index[u.PrimaryAccession] = len(out)
		e := protein.ExternalEntry{
			PrimaryAccession:    u.PrimaryAccession,
			SecondaryAccessions: u.SecondaryAccessions,
			TaxID:               u.Organism.TaxonID,
			Sequence:            u.Sequence.Value,
			Checksum:            u.Sequence.CRC64,
			Chains:              u.chains(),
		}
		for _, id := range u.displayedIsoforms() {
			if id != u.PrimaryAccession {
				e.Transcripts = append(e.Transcripts, protein.Variant{
					Accession: id,
					Sequence:  u.Sequence.Value,
					Canonical: true,
					Kind:      protein.KindIsoform,
				})
			}
		}
		out = append(out, e)
	}

	for _, iso := range isoforms {
		prefix, _ := protein.TranscriptPrefix(iso.PrimaryAccession)
		i, ok := index[prefix]
		if !ok {
			index[prefix] = len(out)
			i = len(out)
			out = append(out, protein.ExternalEntry{PrimaryAccession: prefix, TaxID: iso.Organism.TaxonID})
		}
		v := protein.Variant{
			Accession:           iso.PrimaryAccession,
			SecondaryAccessions: iso.SecondaryAccessions,
			Sequence:            iso.Sequence.Value,
			Kind:                protein.KindIsoform,
		}
		if existing := findVariant(out[i].Transcripts, v.Accession); existing >= 0 {
			out[i].Transcripts[existing].Sequence = v.Sequence
			out[i].Transcripts[existing].SecondaryAccessions = v.SecondaryAccessions
			continue
		}
		out[i].Transcripts = append(out[i].Transcripts, v)
	}
	return out
}

func findVariant(vs []protein.Variant, accession string) int {
	for i, v := range vs {
		if v.Accession == accession {
			return i
		}
	}
	return -1
}
