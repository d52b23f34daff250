package domain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
)

var (
	watched  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	stranger = common.HexToAddress("0x2222222222222222222222222222222222222222")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pool     = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	wl, err := NewWatchlist([]string{watched.Hex()})
	if err != nil {
		t.Fatalf("NewWatchlist: %v", err)
	}
	c, err := NewClassifier(wl, []Token{{Address: usdc, Symbol: "USDC"}})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func transferData(t *testing.T, c *Classifier, to common.Address, amount int64) []byte {
	t.Helper()
	data, err := c.erc20.Pack("transfer", to, big.NewInt(amount))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return data
}

func addr(a common.Address) *common.Address { return &a }

func TestNewWatchlist_RejectsMalformed(t *testing.T) {
	if _, err := NewWatchlist([]string{"0x123"}); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestClassifier_Classify(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name      string
		tx        blockchainDomain.Transaction
		matched   bool
		kind      Kind
		direction Direction
		amount    int64
	}{
		{
			name:      "native_inbound",
			tx:        blockchainDomain.Transaction{From: stranger, To: addr(watched), Value: big.NewInt(5e17)},
			matched:   true,
			kind:      KindNativeTransfer,
			direction: DirectionInbound,
			amount:    5e17,
		},
		{
			name:      "native_outbound",
			tx:        blockchainDomain.Transaction{From: watched, To: addr(stranger), Value: big.NewInt(1)},
			matched:   true,
			kind:      KindNativeTransfer,
			direction: DirectionOutbound,
			amount:    1,
		},
		{
			name:      "token_transfer_to_watched",
			tx:        blockchainDomain.Transaction{From: stranger, To: addr(usdc), Value: big.NewInt(0), Data: transferData(t, c, watched, 2_500_000)},
			matched:   true,
			kind:      KindTokenInteraction,
			direction: DirectionInbound,
			amount:    2_500_000,
		},
		{
			name:      "token_transfer_from_watched",
			tx:        blockchainDomain.Transaction{From: watched, To: addr(usdc), Value: big.NewInt(0), Data: transferData(t, c, stranger, 7)},
			matched:   true,
			kind:      KindTokenInteraction,
			direction: DirectionOutbound,
			amount:    7,
		},
		{
			name:      "contract_call",
			tx:        blockchainDomain.Transaction{From: watched, To: addr(pool), Value: big.NewInt(0), Data: []byte{0x12, 0x34, 0x56, 0x78}},
			matched:   true,
			kind:      KindContractCall,
			direction: DirectionOutbound,
		},
		{
			name:      "zero_value_no_data_is_contract_call",
			tx:        blockchainDomain.Transaction{From: watched, To: addr(stranger), Value: big.NewInt(0)},
			matched:   true,
			kind:      KindContractCall,
			direction: DirectionOutbound,
		},
		{
			name:    "token_transfer_between_strangers",
			tx:      blockchainDomain.Transaction{From: stranger, To: addr(usdc), Value: big.NewInt(0), Data: transferData(t, c, pool, 1)},
			matched: false,
		},
		{
			name:    "unwatched",
			tx:      blockchainDomain.Transaction{From: stranger, To: addr(pool), Value: big.NewInt(1)},
			matched: false,
		},
		{
			name:      "contract_creation_by_watched",
			tx:        blockchainDomain.Transaction{From: watched, Value: big.NewInt(0), Data: []byte{0x60, 0x80}},
			matched:   true,
			kind:      KindContractCall,
			direction: DirectionOutbound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.tx)
			if ok != tt.matched {
				t.Fatalf("matched = %v, want %v", ok, tt.matched)
			}
			if !ok {
				return
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.Direction != tt.direction {
				t.Errorf("Direction = %s, want %s", got.Direction, tt.direction)
			}
			if got.Watched != watched {
				t.Errorf("Watched = %s", got.Watched.Hex())
			}
			if tt.amount != 0 {
				if got.Amount == nil || got.Amount.Int64() != tt.amount {
					t.Errorf("Amount = %v, want %d", got.Amount, tt.amount)
				}
			}
		})
	}
}

func TestClassification_Reason(t *testing.T) {
	c := newClassifier(t)
	tx := blockchainDomain.Transaction{
		Hash:  common.HexToHash("0xabc"),
		From:  stranger,
		To:    addr(watched),
		Value: big.NewInt(1),
	}
	cl, ok := c.Classify(tx)
	if !ok {
		t.Fatal("expected match")
	}
	reason := cl.Reason()
	if !strings.HasPrefix(reason, "native_transfer inbound 0x") || !strings.HasSuffix(reason, "abc") {
		t.Errorf("Reason = %q", reason)
	}
}
