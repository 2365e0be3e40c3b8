package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
)

// ClientOptions configures the remote protocol client.
type ClientOptions struct {
	Timeout    time.Duration // HTTP client timeout (default 60s)
	OnProgress func(string)  // receives side-band progress text
}

// Client speaks the smart-HTTP upload-pack protocol for clone. Each network
// stage runs exactly once per invocation; there is no internal retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onProgress func(string)
}

// NewClient creates a protocol client for the repository at remoteURL.
func NewClient(remoteURL string) *Client {
	return NewClientWithOptions(remoteURL, ClientOptions{})
}

// NewClientWithOptions creates a protocol client with configurable options.
// Zero-value fields in opts receive defaults.
func NewClientWithOptions(remoteURL string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(remoteURL), "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		onProgress: opts.OnProgress,
	}
}

// DiscoverRefs performs ref discovery: GET <url>/info/refs?service=... and
// parse the pkt-line advertisement into refs and capabilities.
func (c *Client) DiscoverRefs(ctx context.Context) (*Advertisement, error) {
	url := c.baseURL + "/info/refs?service=" + uploadService
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: server returned %s: %w", resp.Status, ErrProtocol)
	}

	adv, err := parseAdvertisement(NewPktReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return adv, nil
}

// FetchPack negotiates and transfers a pack for the given want hashes:
// POST one "want" line per hash (the first carrying our capability requests),
// a flush, and "done"; then consume the response stream, demultiplexing
// side-band channels when the server granted that capability. The returned
// bytes are the raw pack.
func (c *Client) FetchPack(ctx context.Context, adv *Advertisement, wants []object.Hash) ([]byte, error) {
	if len(wants) == 0 {
		return nil, fmt.Errorf("fetch pack: no wants")
	}

	// Deduplicate and order wants for a deterministic request body.
	wantSet := make(map[object.Hash]struct{}, len(wants))
	ordered := make([]object.Hash, 0, len(wants))
	for _, h := range wants {
		if _, dup := wantSet[h]; dup {
			continue
		}
		if !object.ValidHash(h) {
			return nil, fmt.Errorf("fetch pack: malformed want %q: %w", h, ErrProtocol)
		}
		wantSet[h] = struct{}{}
		ordered = append(ordered, h)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	// Only request capabilities the server advertised.
	useSideband := adv.Caps.Has(capSideband64k)
	var reqCaps []string
	if adv.Caps.Has(capOfsDelta) {
		reqCaps = append(reqCaps, capOfsDelta)
	}
	if useSideband {
		reqCaps = append(reqCaps, capSideband64k)
	}

	var body bytes.Buffer
	for i, h := range ordered {
		line := "want " + string(h)
		if i == 0 && len(reqCaps) > 0 {
			line += " " + strings.Join(reqCaps, " ")
		}
		if err := WritePktString(&body, line+"\n"); err != nil {
			return nil, fmt.Errorf("fetch pack: %w", err)
		}
	}
	if err := WriteFlush(&body); err != nil {
		return nil, fmt.Errorf("fetch pack: %w", err)
	}
	if err := WritePktString(&body, "done\n"); err != nil {
		return nil, fmt.Errorf("fetch pack: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+uploadService, &body)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-"+uploadService+"-request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: server returned %s: %w", resp.Status, ErrProtocol)
	}

	return readPackResponse(resp.Body, useSideband, c.onProgress)
}

// readPackResponse consumes the upload-pack response: an acknowledgement
// section ending in NAK, then the pack bytes, side-band multiplexed or raw.
func readPackResponse(r io.Reader, sideband bool, onProgress func(string)) ([]byte, error) {
	pr := NewPktReader(r)

	// Acknowledgement section. With no common-object negotiation the server
	// answers a single NAK.
	for {
		line, err := pr.Next()
		if err != nil {
			return nil, fmt.Errorf("read acknowledgement: %w", err)
		}
		if line == nil {
			continue // stray flush
		}
		text := strings.TrimRight(string(line), "\n")
		if text == "NAK" {
			break
		}
		if strings.HasPrefix(text, "ACK") {
			continue
		}
		return nil, fmt.Errorf("unexpected negotiation line %q: %w", text, ErrProtocol)
	}

	var packSrc io.Reader
	if sideband {
		packSrc = NewSidebandReader(pr, onProgress)
	} else {
		// Without side-band the pack follows as raw bytes.
		packSrc = r
	}

	pack, err := io.ReadAll(packSrc)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	if len(pack) == 0 {
		return nil, fmt.Errorf("empty pack stream: %w", ErrProtocol)
	}
	return pack, nil
}
