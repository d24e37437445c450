package pdp

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/tracing"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var log = logging.Logger("pdp")

// maximum size of an error response body that is kept for the error message
const maxErrorBody = 1024

type Config struct {
	// RecordKeeper is the address of the contract that records data sets
	RecordKeeper string
	// PollMin and PollMax bound the backoff between status polls
	PollMin time.Duration
	PollMax time.Duration
	// PollTimeout bounds each wait for an on-chain message
	PollTimeout time.Duration
	// HTTPTimeout bounds each individual request to a provider
	HTTPTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollMin:     time.Second,
		PollMax:     10 * time.Second,
		PollTimeout: 10 * time.Minute,
		HTTPTimeout: 5 * time.Minute,
	}
}

// HTTPError is returned when a provider answers with an unexpected status
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to the PDP service of storage providers. It implements both
// the storage backend and the piece status checker.
type Client struct {
	cfg    Config
	http   *http.Client
	signer ExtraDataSigner
}

var _ types.StorageBackend = (*Client)(nil)
var _ types.PieceStatusChecker = (*Client)(nil)

func NewClient(cfg Config, signer ExtraDataSigner) *Client {
	if signer == nil {
		signer = NoSigner{}
	}
	def := DefaultConfig()
	if cfg.PollMin <= 0 {
		cfg.PollMin = def.PollMin
	}
	if cfg.PollMax < cfg.PollMin {
		cfg.PollMax = cfg.PollMin
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		signer: signer,
	}
}

// CreateStorageContext creates a new data set with the provider and waits
// for the creation message to land on chain.
func (c *Client) CreateStorageContext(ctx context.Context, provider types.ProviderInfo, dataSetMetadata map[string]string) (types.StorageContext, error) {
	ctx, span := tracing.Tracer.Start(ctx, "pdp.create_data_set", trace.WithAttributes(
		attribute.String("provider", provider.Address),
	))
	defer span.End()

	base, err := serviceURL(provider)
	if err != nil {
		return nil, err
	}

	extra, err := c.signer.CreateDataSetExtraData(ctx, provider, dataSetMetadata)
	if err != nil {
		return nil, fmt.Errorf("signing data set extra data: %w", err)
	}

	req := createDataSetRequest{
		RecordKeeper: c.cfg.RecordKeeper,
		ExtraData:    encodeExtraData(extra),
	}
	resp, err := c.doJSON(ctx, http.MethodPost, resolve(base, "/pdp/data-sets"), req, http.StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("creating data set: %w", err)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, errors.New("creating data set: response has no Location header")
	}

	log.Infow("data set creation submitted", "provider", provider.Address, "status", location)

	var dataSetID uint64
	err = c.poll(ctx, "data set creation", func(ctx context.Context) (bool, error) {
		var st dataSetCreationStatus
		if err := c.getJSON(ctx, resolve(base, location), &st); err != nil {
			return false, err
		}
		if st.OK != nil && !*st.OK {
			return false, fmt.Errorf("data set creation message %s failed (tx status %s)", st.CreateMessageHash, st.TxStatus)
		}
		if !st.DataSetCreated || st.DataSetID == nil {
			return false, nil
		}
		dataSetID = *st.DataSetID
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	log.Infow("data set created", "provider", provider.Address, "dataSetId", dataSetID)

	return &storageContext{
		client:    c,
		provider:  provider,
		base:      base,
		dataSetID: dataSetID,
	}, nil
}

// PieceStatus fetches the indexing state of a piece from the provider
func (c *Client) PieceStatus(ctx context.Context, provider types.ProviderInfo, pieceCid cid.Cid) (*types.PieceStatus, error) {
	base, err := serviceURL(provider)
	if err != nil {
		return nil, err
	}

	var st pieceStatusResponse
	if err := c.getJSON(ctx, resolve(base, "/pdp/piece/"+pieceCid.String()+"/status"), &st); err != nil {
		return nil, fmt.Errorf("getting piece status: %w", err)
	}
	return &types.PieceStatus{
		Indexed:     st.Indexed,
		Advertised:  st.Advertised,
		Retrieved:   st.Retrieved,
		RetrievedAt: st.RetrievedAt,
	}, nil
}

// poll calls check with exponential backoff until it reports done, returns
// an error, or the poll timeout expires.
func (c *Client) poll(ctx context.Context, what string, check func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	b := &backoff.Backoff{
		Min:    c.cfg.PollMin,
		Max:    c.cfg.PollMax,
		Factor: 1.5,
		Jitter: true,
	}

	for {
		done, err := check(ctx)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", what, err)
		}
		if done {
			return nil
		}

		d := b.Duration()
		log.Debugw("polling", "what", what, "attempt", b.Attempt(), "wait", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method string, u string, body interface{}, expect ...int) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	return c.do(ctx, method, u, bytes.NewReader(buf), "application/json", expect...)
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, u, nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// do sends a request and checks the response status. The body of a
// successful response is read and closed, and replaced with a buffer.
func (c *Client) do(ctx context.Context, method string, u string, body io.Reader, contentType string, expect ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, code := range expect {
		if resp.StatusCode == code {
			buf, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("reading response body: %w", err)
			}
			resp.Body = io.NopCloser(bytes.NewReader(buf))
			return resp, nil
		}
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &HTTPError{
		Method:     method,
		URL:        u,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(msg)),
	}
}

func decodeJSON(resp *http.Response, out interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", resp.Request.URL, err)
	}
	return nil
}

func serviceURL(provider types.ProviderInfo) (*url.URL, error) {
	if provider.ServiceURL == "" {
		return nil, fmt.Errorf("provider %s has no service url", provider.Address)
	}
	u, err := url.Parse(provider.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing service url of provider %s: %w", provider.Address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service url of provider %s must be http or https: %s", provider.Address, provider.ServiceURL)
	}
	return u, nil
}

// resolve resolves an absolute path or full URL against the service url,
// keeping any path prefix the service url has.
func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err == nil && r.IsAbs() {
		return r.String()
	}
	u := *base
	u.RawQuery = ""
	p := ref
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		p, u.RawQuery = ref[:i], ref[i+1:]
	}
	u.Path = path.Join("/", strings.TrimSuffix(base.Path, "/"), p)
	u.RawPath = ""
	return u.String()
}

func encodeExtraData(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
