package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/srizd/clinishare/backend/internal/domain"
)

const testAccount = "0x00000000000000000000000000000000000000000000000000000000000000fe"

func newTestClient(t *testing.T, handler http.HandlerFunc) *AptosClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewAptosClient(AptosOptions{NodeURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestViewPostsFunctionCall(t *testing.T) {
	var got struct {
		Function      string   `json:"function"`
		TypeArguments []string `json:"type_arguments"`
		Arguments     []any    `json:"arguments"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/view" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`["250000000"]`))
	})

	out, err := client.View(context.Background(), BalanceViewFunction, []string{AptosCoinType}, []any{testAccount})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(out) != 1 || out[0] != "250000000" {
		t.Fatalf("unexpected view result %v", out)
	}
	if got.Function != BalanceViewFunction {
		t.Fatalf("expected function %s, got %s", BalanceViewFunction, got.Function)
	}
	if len(got.TypeArguments) != 1 || got.TypeArguments[0] != AptosCoinType {
		t.Fatalf("unexpected type arguments %v", got.TypeArguments)
	}
	if len(got.Arguments) != 1 || got.Arguments[0] != testAccount {
		t.Fatalf("unexpected arguments %v", got.Arguments)
	}
}

func TestViewPropagatesNodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid function"}`, http.StatusBadRequest)
	})

	if _, err := client.View(context.Background(), "0x1::coin::nope", nil, nil); err == nil {
		t.Fatal("expected view error")
	}
}

func TestAccountBalanceParsesCoinStore(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"coin":{"value":"5000"}}}`))
	})

	balance, err := client.AccountBalance(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("account balance: %v", err)
	}
	if balance != domain.Octas(5000) {
		t.Fatalf("expected 5000 octas, got %d", balance)
	}
}

func TestAccountBalanceMissingCoinStore(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"resource_not_found"}`, http.StatusNotFound)
	})

	if _, err := client.AccountBalance(context.Background(), testAccount); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransferRequiresSigner(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("read-only client must not reach the node")
	})

	if _, err := client.TransferAPT(context.Background(), testAccount, domain.OctasPerAPT); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
}
