package pin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// PinataOptions configures the Pinata client.
type PinataOptions struct {
	Endpoint    string
	GatewayBase string
	JWT         string
	Timeout     time.Duration
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// PinataClient pins files through the Pinata pinFileToIPFS endpoint.
type PinataClient struct {
	endpoint    string
	gatewayBase string
	jwt         string
	httpClient  *http.Client

	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPinataClient builds a Pinata-backed Pinner.
func NewPinataClient(opts PinataOptions) (*PinataClient, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("pinata endpoint is required")
	}
	if opts.JWT == "" {
		return nil, errors.New("pinata JWT is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &PinataClient{
		endpoint:    opts.Endpoint,
		gatewayBase: opts.GatewayBase,
		jwt:         opts.JWT,
		httpClient:  httpClient,
		attempts:    3,
		backoff:     2 * time.Second,
		sleep:       sleepCtx,
	}, nil
}

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Pin uploads the content and returns its pin. Transient failures (network
// errors, HTTP 429 and 5xx) are retried twice with a fixed backoff; client
// errors fail immediately.
func (c *PinataClient) Pin(ctx context.Context, category Category, filename string, content io.Reader, size int64) (Pinned, error) {
	if err := CheckSize(category, size); err != nil {
		return Pinned{}, err
	}

	// Buffered so the body can be resent on retry. Category ceilings keep
	// this bounded.
	payload, err := io.ReadAll(io.LimitReader(content, size))
	if err != nil {
		return Pinned{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(payload)) != size {
		return Pinned{}, fmt.Errorf("upload truncated: declared %d bytes, read %d", size, len(payload))
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return Pinned{}, err
			}
		}

		pinned, retryable, err := c.pinOnce(ctx, filename, payload)
		if err == nil {
			return pinned, nil
		}
		lastErr = err
		if !retryable {
			return Pinned{}, err
		}
	}
	return Pinned{}, fmt.Errorf("pin %s after %d attempts: %w", filename, c.attempts, lastErr)
}

func (c *PinataClient) pinOnce(ctx context.Context, filename string, payload []byte) (Pinned, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Pinned{}, false, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return Pinned{}, false, fmt.Errorf("write form file: %w", err)
	}

	meta, _ := json.Marshal(map[string]string{"name": filename})
	if err := writer.WriteField("pinataMetadata", string(meta)); err != nil {
		return Pinned{}, false, fmt.Errorf("write metadata field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Pinned{}, false, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return Pinned{}, false, fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Pinned{}, false, ctx.Err()
		}
		return Pinned{}, true, fmt.Errorf("pin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("pin request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return Pinned{}, retryable, err
	}

	var parsed pinataResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Pinned{}, false, fmt.Errorf("decode pin response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return Pinned{}, false, errors.New("pin response missing CID")
	}

	pinned := Pinned{
		CID:  parsed.IpfsHash,
		Size: parsed.PinSize,
	}
	if int64(len(payload)) > 0 && pinned.Size == 0 {
		pinned.Size = int64(len(payload))
	}
	if c.gatewayBase != "" {
		pinned.URL = c.gatewayBase + "/" + parsed.IpfsHash
	}
	return pinned, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
