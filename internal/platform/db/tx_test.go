package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx     *fakeTx
	begins int
	err    error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	b.begins++
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestRunInTx_Commit(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	var sawTx bool
	err := RunInTx(context.Background(), b, func(ctx context.Context) error {
		sawTx = TxFromContext(ctx) != nil
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawTx {
		t.Error("expected transaction in callback context")
	}
	if !b.tx.committed {
		t.Error("expected commit")
	}
	if b.tx.rolledBack {
		t.Error("did not expect rollback after commit")
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("insert failed")
	err := RunInTx(context.Background(), b, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if b.tx.committed {
		t.Error("did not expect commit")
	}
	if !b.tx.rolledBack {
		t.Error("expected rollback")
	}
}

func TestRunInTx_RollbackOnCancel(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	ctx, cancel := context.WithCancel(context.Background())
	err := RunInTx(ctx, b, func(context.Context) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.tx.committed {
		t.Error("did not expect commit after cancellation")
	}
	if !b.tx.rolledBack {
		t.Error("expected rollback")
	}
}

func TestRunInTx_JoinsOuterTransaction(t *testing.T) {
	outer := &fakeTx{}
	b := &fakeBeginner{tx: &fakeTx{}}
	ctx := WithTx(context.Background(), outer)

	err := RunInTx(ctx, b, func(ctx context.Context) error {
		if TxFromContext(ctx) != outer {
			t.Error("expected outer transaction to be reused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.begins != 0 {
		t.Errorf("expected no new transaction, got %d", b.begins)
	}
	if outer.committed {
		t.Error("inner RunInTx must not commit the outer transaction")
	}
}

func TestRunInTx_BeginError(t *testing.T) {
	b := &fakeBeginner{err: errors.New("pool closed")}
	called := false
	err := RunInTx(context.Background(), b, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("callback must not run when begin fails")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestNotFound(t *testing.T) {
	if !errors.Is(NotFound(pgx.ErrNoRows), ErrNotFound) {
		t.Error("expected pgx.ErrNoRows to map to ErrNotFound")
	}
	other := errors.New("connection reset")
	if NotFound(other) != other {
		t.Error("expected other errors to pass through")
	}
	if NotFound(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}
