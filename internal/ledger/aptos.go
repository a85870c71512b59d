package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/srizd/clinishare/backend/internal/domain"
)

const (
	transferFunction  = "0x1::aptos_account::transfer"
	coinStoreResource = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"

	defaultMaxGasAmount = "20000"
	defaultGasUnitPrice = "100"
	txExpirationWindow  = 10 * time.Minute
	pollInterval        = time.Second
)

// AptosOptions configures the fullnode REST client.
type AptosOptions struct {
	NodeURL       string
	ChainID       uint8
	SourceAddress string
	// PrivateKeyHex is the 32-byte ed25519 seed in hex, with or without the
	// 0x prefix. Optional; without it the client is read-only.
	PrivateKeyHex  string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// AptosClient talks to an Aptos fullnode over its REST API.
type AptosClient struct {
	nodeURL    string
	chainID    uint8
	source     string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	httpClient *http.Client
}

// NewAptosClient builds a fullnode client. When a private key is supplied
// and no source address is configured, the address is derived from the key.
func NewAptosClient(opts AptosOptions) (*AptosClient, error) {
	if opts.NodeURL == "" {
		return nil, errors.New("ledger node URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	client := &AptosClient{
		nodeURL:    strings.TrimRight(opts.NodeURL, "/"),
		chainID:    opts.ChainID,
		source:     opts.SourceAddress,
		httpClient: httpClient,
	}

	if opts.PrivateKeyHex != "" {
		seed, err := hex.DecodeString(strings.TrimPrefix(opts.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		client.privateKey = ed25519.NewKeyFromSeed(seed)
		client.publicKey = client.privateKey.Public().(ed25519.PublicKey)
		if client.source == "" {
			client.source = deriveAddress(client.publicKey)
		}
	}

	return client, nil
}

// SourceAddress returns the settlement account address.
func (c *AptosClient) SourceAddress() string {
	return c.source
}

// deriveAddress computes the account address for a single ed25519 key:
// sha3-256 of the public key followed by the 0x00 single-key scheme byte.
func deriveAddress(pub ed25519.PublicKey) string {
	hasher := sha3.New256()
	hasher.Write(pub)
	hasher.Write([]byte{0x00})
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

func (c *AptosClient) TransferAPT(ctx context.Context, recipient string, amount domain.Octas) (string, error) {
	if c.privateKey == nil {
		return "", ErrNoSigner
	}

	seq, err := c.sequenceNumber(ctx, c.source)
	if err != nil {
		return "", err
	}

	tx := map[string]any{
		"sender":                    c.source,
		"sequence_number":           strconv.FormatUint(seq, 10),
		"max_gas_amount":            defaultMaxGasAmount,
		"gas_unit_price":            defaultGasUnitPrice,
		"expiration_timestamp_secs": strconv.FormatInt(time.Now().Add(txExpirationWindow).Unix(), 10),
		"payload": map[string]any{
			"type":           "entry_function_payload",
			"function":       transferFunction,
			"type_arguments": []string{},
			"arguments":      []any{recipient, strconv.FormatUint(uint64(amount), 10)},
		},
	}

	var signingMessage string
	if err := c.post(ctx, "/transactions/encode_submission", tx, &signingMessage); err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	message, err := hex.DecodeString(strings.TrimPrefix(signingMessage, "0x"))
	if err != nil {
		return "", fmt.Errorf("decode signing message: %w", err)
	}
	signature := ed25519.Sign(c.privateKey, message)

	tx["signature"] = map[string]any{
		"type":       "ed25519_signature",
		"public_key": "0x" + hex.EncodeToString(c.publicKey),
		"signature":  "0x" + hex.EncodeToString(signature),
	}

	var submitted struct {
		Hash string `json:"hash"`
	}
	if err := c.post(ctx, "/transactions", tx, &submitted); err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	return submitted.Hash, nil
}

func (c *AptosClient) WaitForTransaction(ctx context.Context, hash string) (TransactionResult, error) {
	for {
		var tx struct {
			Type      string `json:"type"`
			Hash      string `json:"hash"`
			Success   bool   `json:"success"`
			VMStatus  string `json:"vm_status"`
			GasUsed   string `json:"gas_used"`
			Timestamp string `json:"timestamp"`
		}
		err := c.get(ctx, "/transactions/by_hash/"+hash, &tx)
		switch {
		case err == nil && tx.Type != "pending_transaction":
			result := TransactionResult{
				Hash:     tx.Hash,
				Success:  tx.Success,
				VMStatus: tx.VMStatus,
			}
			result.GasUsed, _ = strconv.ParseUint(tx.GasUsed, 10, 64)
			result.Timestamp, _ = strconv.ParseUint(tx.Timestamp, 10, 64)
			if !tx.Success {
				return result, fmt.Errorf("%w: %s", ErrTransactionFailed, tx.VMStatus)
			}
			return result, nil
		case err != nil && !errors.Is(err, errNotFound):
			return TransactionResult{}, fmt.Errorf("poll transaction %s: %w", hash, err)
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return TransactionResult{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *AptosClient) AccountBalance(ctx context.Context, address string) (domain.Octas, error) {
	var resource struct {
		Data struct {
			Coin struct {
				Value string `json:"value"`
			} `json:"coin"`
		} `json:"data"`
	}
	err := c.get(ctx, "/accounts/"+address+"/resource/"+coinStoreResource, &resource)
	if errors.Is(err, errNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("fetch balance for %s: %w", address, err)
	}

	value, err := strconv.ParseUint(resource.Data.Coin.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", resource.Data.Coin.Value, err)
	}
	return domain.Octas(value), nil
}

func (c *AptosClient) View(ctx context.Context, function string, typeArgs []string, args []any) ([]any, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	body := map[string]any{
		"function":       function,
		"type_arguments": typeArgs,
		"arguments":      args,
	}

	var result []any
	if err := c.post(ctx, "/view", body, &result); err != nil {
		return nil, fmt.Errorf("view %s: %w", function, err)
	}
	return result, nil
}

func (c *AptosClient) sequenceNumber(ctx context.Context, address string) (uint64, error) {
	var account struct {
		SequenceNumber string `json:"sequence_number"`
	}
	if err := c.get(ctx, "/accounts/"+address, &account); err != nil {
		return 0, fmt.Errorf("fetch account %s: %w", address, err)
	}
	seq, err := strconv.ParseUint(account.SequenceNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence number %q: %w", account.SequenceNumber, err)
	}
	return seq, nil
}

var errNotFound = errors.New("ledger resource not found")

func (c *AptosClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *AptosClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *AptosClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger request %s failed with status %d: %s", req.URL.Path, resp.StatusCode, bytes.TrimSpace(detail))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
