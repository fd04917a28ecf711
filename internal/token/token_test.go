package token

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/relay"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

const owner = "root"

func newService(t *testing.T) *Service {
	t.Helper()
	gate, err := whitelist.NewGate(owner, nil)
	require.NoError(t, err)
	svc, err := New(Options{ID: "token", Gate: gate})
	require.NoError(t, err)
	return svc
}

func balance(t *testing.T, s *Service, account string) string {
	t.Helper()
	bal, err := s.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return bal.String()
}

type stubReceiver struct {
	refuse amount.Amount
	err    error
	calls  []string
	during func(msg string)
}

func (r *stubReceiver) OnTransfer(_ context.Context, caller, source string, value amount.Amount, msg string) (amount.Amount, error) {
	r.calls = append(r.calls, caller+"|"+source+"|"+value.String()+"|"+msg)
	if r.during != nil {
		r.during(msg)
	}
	return r.refuse, r.err
}

func TestCreateValueRequiresOwnerAndRegistration(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.CreateValue(ctx, owner, "alice", amount.FromUint64(5))
	require.ErrorIs(t, err, ErrNotRegistered)

	require.ErrorIs(t, s.RegisterAccount(ctx, "alice", "alice"), ErrUnauthorized)
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))

	_, err = s.CreateValue(ctx, "alice", "alice", amount.FromUint64(5))
	require.ErrorIs(t, err, ErrUnauthorized)

	bal, err := s.CreateValue(ctx, owner, "alice", amount.FromUint64(5))
	require.NoError(t, err)
	require.Equal(t, "5", bal.String())
}

func TestAddAndRmValueRequireWhitelist(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.AddValue(ctx, "minter", "alice", amount.FromUint64(5))
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, s.WhitelistAdd(ctx, owner, "minter"))
	_, err = s.AddValue(ctx, "minter", "alice", amount.FromUint64(5))
	require.NoError(t, err)

	_, err = s.RmValue(ctx, "minter", "alice", amount.FromUint64(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	bal, err := s.RmValue(ctx, "minter", "alice", amount.FromUint64(5))
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestTransferBetweenRegisteredAccounts(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	_, err := s.CreateValue(ctx, owner, "alice", amount.FromUint64(10))
	require.NoError(t, err)

	require.ErrorIs(t, s.Transfer(ctx, "alice", "bob", amount.FromUint64(1)), ErrNotRegistered)
	require.NoError(t, s.RegisterAccount(ctx, owner, "bob"))
	require.ErrorIs(t, s.Transfer(ctx, "alice", "bob", amount.FromUint64(11)), ErrInsufficientBalance)
	require.NoError(t, s.Transfer(ctx, "alice", "bob", amount.FromUint64(4)))

	require.Equal(t, "6", balance(t, s, "alice"))
	require.Equal(t, "4", balance(t, s, "bob"))
}

func TestTransferCallRefundsRefusedPart(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	recv := &stubReceiver{refuse: amount.FromUint64(3)}
	require.NoError(t, s.RegisterReceiver(ctx, "bank", recv))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	_, err := s.CreateValue(ctx, owner, "alice", amount.FromUint64(10))
	require.NoError(t, err)

	kept, err := s.TransferCall(ctx, "alice", "bank", amount.FromUint64(10), `{"kind":"x"}`)
	require.NoError(t, err)
	require.Equal(t, "7", kept.String())
	require.Equal(t, "3", balance(t, s, "alice"))
	require.Equal(t, "7", balance(t, s, "bank"))
	require.Equal(t, []string{`token|alice|10|{"kind":"x"}`}, recv.calls)
}

func TestTransferCallRefundsEverythingOnReceiverError(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	recv := &stubReceiver{err: errors.New("boom")}
	require.NoError(t, s.RegisterReceiver(ctx, "bank", recv))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	_, err := s.CreateValue(ctx, owner, "alice", amount.FromUint64(10))
	require.NoError(t, err)

	_, err = s.Deposit(ctx, "alice", "bank", amount.FromUint64(10))
	require.EqualError(t, err, "boom")
	require.Equal(t, "10", balance(t, s, "alice"))
	require.Equal(t, "0", balance(t, s, "bank"))
}

func TestTransferCallUnknownReceiver(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	require.NoError(t, s.RegisterAccount(ctx, owner, "bob"))

	_, err := s.TransferCall(ctx, "alice", "bob", amount.FromUint64(1), "")
	require.ErrorIs(t, err, ErrUnknownReceiver)
}

func TestWithdrawChecksReceiverHoldings(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	recv := &stubReceiver{}
	require.NoError(t, s.RegisterReceiver(ctx, "bank", recv))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))

	err := s.Withdraw(ctx, "alice", "bank", amount.FromUint64(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Empty(t, recv.calls, "receiver must not be notified when it cannot pay")
}

func TestWithdrawRefusedMovesNothing(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	recv := &stubReceiver{refuse: amount.FromUint64(5)}
	require.NoError(t, s.RegisterReceiver(ctx, "bank", recv))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	_, err := s.CreateValue(ctx, owner, "bank", amount.FromUint64(5))
	require.NoError(t, err)

	err = s.Withdraw(ctx, "alice", "bank", amount.FromUint64(5))
	require.ErrorIs(t, err, ErrRefused)
	require.Equal(t, "5", balance(t, s, "bank"))
	require.Equal(t, "0", balance(t, s, "alice"))
}

func TestExecuteSettlesRelay(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	require.NoError(t, s.RegisterReceiver(ctx, "bank", &stubReceiver{}))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	_, err := s.CreateValue(ctx, owner, "bank", amount.FromUint64(8))
	require.NoError(t, err)

	req := relay.Request{ID: "r1", Origin: "bank", Counterparty: "token", Account: "alice", Amount: amount.FromUint64(8)}
	require.NoError(t, s.Execute(ctx, req))
	require.Equal(t, "8", balance(t, s, "alice"))

	require.ErrorIs(t, s.Execute(ctx, req), ErrInsufficientBalance)

	req.Account = "carol"
	require.ErrorIs(t, s.Execute(ctx, req), ErrNotRegistered)
	req.Origin = "elsewhere"
	require.ErrorIs(t, s.Execute(ctx, req), ErrUnknownReceiver)
}

func TestWithdrawSettlementFailureRedepositsAtReceiver(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	recv := &stubReceiver{}
	require.NoError(t, s.RegisterReceiver(ctx, "bank", recv))
	require.NoError(t, s.RegisterAccount(ctx, owner, "alice"))
	require.NoError(t, s.WhitelistAdd(ctx, owner, "auditor"))
	_, err := s.CreateValue(ctx, owner, "bank", amount.FromUint64(5))
	require.NoError(t, err)

	// the receiver's holdings shrink after it accepted the withdrawal
	recv.during = func(msg string) {
		if msg == `{"kind":"withdrawal"}` {
			_, err := s.RmValue(ctx, "auditor", "bank", amount.FromUint64(5))
			require.NoError(t, err)
		}
	}

	err = s.Withdraw(ctx, "alice", "bank", amount.FromUint64(5))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, []string{
		`token|alice|5|{"kind":"withdrawal"}`,
		`token|alice|5|{"kind":"deposit"}`,
	}, recv.calls)
	require.Equal(t, "0", balance(t, s, "alice"))
}
