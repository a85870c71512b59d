package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/srizd/clinishare/backend/internal/domain"
)

// MemoryClient is an in-memory ledger for tests. Transfers succeed
// immediately unless a failure is injected.
type MemoryClient struct {
	mu           sync.Mutex
	balances     map[string]domain.Octas
	unregistered map[string]domain.Octas
	transfers    []Transfer
	nextHash     int
	failErr      error
}

// Transfer records a submitted transfer.
type Transfer struct {
	Recipient string
	Amount    domain.Octas
	Hash      string
}

// NewMemoryClient instantiates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		balances:     make(map[string]domain.Octas),
		unregistered: make(map[string]domain.Octas),
	}
}

// SetBalance seeds an account balance.
func (m *MemoryClient) SetBalance(address string, amount domain.Octas) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = amount
}

// SetUnregisteredBalance seeds coin held by an account without a CoinStore
// resource: AccountBalance reports ErrAccountNotFound for it while the
// balance view function still answers.
func (m *MemoryClient) SetUnregisteredBalance(address string, amount domain.Octas) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregistered[address] = amount
}

// WithError makes subsequent transfers fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	return m
}

// Transfers returns a snapshot of submitted transfers.
func (m *MemoryClient) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.transfers...)
}

func (m *MemoryClient) TransferAPT(_ context.Context, recipient string, amount domain.Octas) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return "", m.failErr
	}

	m.nextHash++
	hash := fmt.Sprintf("0x%064x", m.nextHash)
	m.transfers = append(m.transfers, Transfer{
		Recipient: recipient,
		Amount:    amount,
		Hash:      hash,
	})
	m.balances[recipient] += amount
	return hash, nil
}

func (m *MemoryClient) WaitForTransaction(_ context.Context, hash string) (TransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.transfers {
		if t.Hash == hash {
			return TransactionResult{Hash: hash, Success: true, VMStatus: "Executed successfully"}, nil
		}
	}
	return TransactionResult{}, fmt.Errorf("unknown transaction %s", hash)
}

func (m *MemoryClient) AccountBalance(_ context.Context, address string) (domain.Octas, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[address]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (m *MemoryClient) View(_ context.Context, function string, _ []string, args []any) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if function != BalanceViewFunction || len(args) != 1 {
		return nil, fmt.Errorf("unsupported view function %s", function)
	}
	address, _ := args[0].(string)
	total := m.balances[address] + m.unregistered[address]
	return []any{strconv.FormatUint(uint64(total), 10)}, nil
}
