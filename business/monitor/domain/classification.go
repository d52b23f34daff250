package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
)

// Kind is what a matched transaction does.
type Kind string

const (
	KindTokenInteraction Kind = "token_interaction"
	KindNativeTransfer   Kind = "native_transfer"
	KindContractCall     Kind = "contract_call"
)

// ParseKind accepts the config spelling of a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTokenInteraction, KindNativeTransfer, KindContractCall:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Direction is relative to the watched address.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection accepts "" as "any".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DirectionInbound, DirectionOutbound:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Token is a known ERC20 the classifier recognises.
type Token struct {
	Address common.Address
	Symbol  string
}

// Classification is the outcome of inspecting one watched transaction.
type Classification struct {
	Kind      Kind
	Direction Direction
	Watched   common.Address
	Token     *Token
	// Amount is the native value, or the token amount for ERC20 transfers
	// when it could be decoded.
	Amount *big.Int
	Tx     blockchainDomain.Transaction
}

// Reason is the human-readable trigger carried into swap requests.
func (c Classification) Reason() string {
	return fmt.Sprintf("%s %s %s", c.Kind, c.Direction, c.Tx.Hash.Hex())
}

const erc20TransferABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Classifier matches transactions against the watchlist and the known
// token set. It is safe for concurrent use.
type Classifier struct {
	watch  *Watchlist
	tokens map[common.Address]Token
	erc20  abi.ABI
}

func NewClassifier(watch *Watchlist, tokens []Token) (*Classifier, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}
	c := &Classifier{
		watch:  watch,
		tokens: make(map[common.Address]Token, len(tokens)),
		erc20:  parsed,
	}
	for _, t := range tokens {
		c.tokens[t.Address] = t
	}
	return c, nil
}

// Classify returns false when the transaction does not touch a watched
// address. A token transfer whose decoded recipient is watched counts as
// inbound even though the watched address is neither sender nor To.
func (c *Classifier) Classify(tx blockchainDomain.Transaction) (Classification, bool) {
	var token *Token
	if tx.To != nil {
		if t, ok := c.tokens[*tx.To]; ok {
			token = &t
		}
	}

	watched, dir, ok := c.direction(tx, token)
	if !ok {
		return Classification{}, false
	}

	cl := Classification{
		Direction: dir,
		Watched:   watched,
		Token:     token,
		Tx:        tx,
	}

	switch {
	case token != nil:
		cl.Kind = KindTokenInteraction
		if _, amount, ok := c.decodeTransfer(tx.Data); ok {
			cl.Amount = amount
		}
	case !tx.HasCalldata() && tx.Value != nil && tx.Value.Sign() > 0:
		cl.Kind = KindNativeTransfer
		cl.Amount = new(big.Int).Set(tx.Value)
	default:
		cl.Kind = KindContractCall
		if tx.Value != nil && tx.Value.Sign() > 0 {
			cl.Amount = new(big.Int).Set(tx.Value)
		}
	}
	return cl, true
}

func (c *Classifier) direction(tx blockchainDomain.Transaction, token *Token) (common.Address, Direction, bool) {
	if c.watch.Contains(tx.From) {
		return tx.From, DirectionOutbound, true
	}
	if tx.To != nil && c.watch.Contains(*tx.To) {
		return *tx.To, DirectionInbound, true
	}
	if token != nil {
		if to, _, ok := c.decodeTransfer(tx.Data); ok && c.watch.Contains(to) {
			return to, DirectionInbound, true
		}
	}
	return common.Address{}, "", false
}

// decodeTransfer extracts the recipient and amount of transfer or
// transferFrom calldata.
func (c *Classifier) decodeTransfer(data []byte) (common.Address, *big.Int, bool) {
	if len(data) < 4 {
		return common.Address{}, nil, false
	}
	method, err := c.erc20.MethodById(data[:4])
	if err != nil {
		return common.Address{}, nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, false
	}

	toIdx := 0
	if method.Name == "transferFrom" {
		toIdx = 1
	}
	to, ok := args[toIdx].(common.Address)
	if !ok {
		return common.Address{}, nil, false
	}
	amount, ok := args[toIdx+1].(*big.Int)
	if !ok {
		return common.Address{}, nil, false
	}
	return to, amount, true
}
