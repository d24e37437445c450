package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dataset")

// Source produces payloads with a size in [minSize, maxSize]
type Source interface {
	Fetch(ctx context.Context, minSize int64, maxSize int64) (*types.Payload, error)
}

// Fetch gets a payload from the primary source, and from the fallback source
// if the primary fails
func Fetch(ctx context.Context, primary Source, fallback Source, minSize int64, maxSize int64) (*types.Payload, error) {
	if minSize < 0 || maxSize < minSize {
		return nil, fmt.Errorf("invalid payload size range [%d, %d]", minSize, maxSize)
	}

	if primary != nil {
		p, err := primary.Fetch(ctx, minSize, maxSize)
		if err == nil {
			return p, nil
		}
		log.Warnw("primary dataset source failed, using fallback", "err", err)
	}

	p, err := fallback.Fetch(ctx, minSize, maxSize)
	if err != nil {
		return nil, fmt.Errorf("fetching payload from fallback source: %w", err)
	}
	return p, nil
}

// HTTPSource downloads a payload from one of a list of URLs
type HTTPSource struct {
	urls   []string
	client *http.Client
	rand   *rand.Rand
}

func NewHTTPSource(urls []string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		urls:   urls,
		client: &http.Client{Timeout: timeout},
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch tries each URL in random order and returns the first payload whose
// size is within bounds
func (s *HTTPSource) Fetch(ctx context.Context, minSize int64, maxSize int64) (*types.Payload, error) {
	if len(s.urls) == 0 {
		return nil, errors.New("no dataset urls configured")
	}

	var merr *multierror.Error
	for _, i := range s.rand.Perm(len(s.urls)) {
		u := s.urls[i]
		p, err := s.fetchURL(ctx, u, minSize, maxSize)
		if err == nil {
			log.Infow("fetched dataset", "url", u, "size", p.Size)
			return p, nil
		}
		merr = multierror.Append(merr, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, merr.ErrorOrNil()
}

func (s *HTTPSource) fetchURL(ctx context.Context, u string, minSize int64, maxSize int64) (*types.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", u, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", u, resp.StatusCode)
	}
	if resp.ContentLength > maxSize {
		return nil, fmt.Errorf("fetching %s: content length %d exceeds max size %d", u, resp.ContentLength, maxSize)
	}

	// Read one byte more than allowed to detect bodies that are too large
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	size := int64(len(data))
	if size > maxSize {
		return nil, fmt.Errorf("fetching %s: body exceeds max size %d", u, maxSize)
	}
	if size < minSize {
		return nil, fmt.Errorf("fetching %s: body size %d is less than min size %d", u, size, minSize)
	}

	return &types.Payload{Name: nameFromURL(u), Data: data, Size: size}, nil
}

func nameFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "dataset"
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return parsed.Host
	}
	return name
}

// RandomSource generates random payloads
type RandomSource struct {
	rand *rand.Rand
}

func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rand: rand.New(rand.NewSource(seed))}
}

func (s *RandomSource) Fetch(_ context.Context, minSize int64, maxSize int64) (*types.Payload, error) {
	size := minSize
	if maxSize > minSize {
		size += s.rand.Int63n(maxSize - minSize + 1)
	}

	data := make([]byte, size)
	if _, err := s.rand.Read(data); err != nil {
		return nil, fmt.Errorf("generating random payload: %w", err)
	}
	return &types.Payload{
		Name: fmt.Sprintf("random-%d-%d.bin", time.Now().Unix(), size),
		Data: data,
		Size: size,
	}, nil
}
