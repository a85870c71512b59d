package ledger

import (
	"context"
	"errors"

	"github.com/srizd/clinishare/backend/internal/domain"
)

const (
	// BalanceViewFunction is the read-only Move function answering a coin
	// balance. Unlike the CoinStore resource it resolves for accounts that
	// have not registered the coin yet.
	BalanceViewFunction = "0x1::coin::balance"
	// AptosCoinType is the coin type argument for APT balances.
	AptosCoinType = "0x1::aptos_coin::AptosCoin"
)

// TransactionResult describes a transaction looked up on the ledger.
type TransactionResult struct {
	Hash      string
	Success   bool
	VMStatus  string
	GasUsed   uint64
	Timestamp uint64
}

// Client is the ledger contract used by settlement and the wallet read
// paths.
type Client interface {
	// TransferAPT submits a coin transfer and returns the transaction hash
	// without waiting for execution.
	TransferAPT(ctx context.Context, recipient string, amount domain.Octas) (string, error)
	// WaitForTransaction polls until the transaction leaves the mempool and
	// returns its execution result.
	WaitForTransaction(ctx context.Context, hash string) (TransactionResult, error)
	// AccountBalance returns the APT balance of the given account.
	AccountBalance(ctx context.Context, address string) (domain.Octas, error)
	// View calls a read-only Move function.
	View(ctx context.Context, function string, typeArgs []string, args []any) ([]any, error)
}

var (
	// ErrTransactionFailed indicates the ledger executed the transaction
	// but it aborted.
	ErrTransactionFailed = errors.New("transaction execution failed")
	// ErrAccountNotFound indicates the account has no CoinStore resource.
	ErrAccountNotFound = errors.New("account not found on ledger")
	// ErrNoSigner indicates the client was built without a private key and
	// cannot submit transactions.
	ErrNoSigner = errors.New("ledger client has no signing key")
)
