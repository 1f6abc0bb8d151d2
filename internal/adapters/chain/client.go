package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"autopilot/internal/adapters/config"
	"autopilot/internal/metrics"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// BalanceReader reads token balances for a wallet. Amounts are returned
// in whole token units, already scaled by the token's decimals.
type BalanceReader interface {
	WalletBalance(ctx context.Context, wallet string) (decimal.Decimal, error)
	YieldBalance(ctx context.Context, wallet string) (decimal.Decimal, error)
}

// Client reads ERC-20 balances over JSON-RPC. It tracks two tokens: the
// underlying asset held idle in the wallet and the protocol's
// interest-bearing receipt token, whose balance grows as yield accrues.
type Client struct {
	eth        *ethclient.Client
	abi        abi.ABI
	asset      common.Address
	yieldToken common.Address
	decimals   int32
	log        *logger.Logger
}

// NewClient dials the configured RPC endpoint. Returns nil client without
// error when no RPC URL is configured; callers treat that as chain-off mode.
func NewClient(cfg config.ChainConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc endpoint")
	}

	return &Client{
		eth:        eth,
		abi:        parsed,
		asset:      common.HexToAddress(cfg.AssetAddress),
		yieldToken: common.HexToAddress(cfg.YieldTokenAddress),
		decimals:   int32(cfg.AssetDecimals),
		log:        logger.Get().With("component", "chain"),
	}, nil
}

// WalletBalance returns the idle asset balance of the wallet
func (c *Client) WalletBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	return c.balanceOf(ctx, c.asset, wallet)
}

// YieldBalance returns the receipt token balance of the wallet
func (c *Client) YieldBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	return c.balanceOf(ctx, c.yieldToken, wallet)
}

func (c *Client) balanceOf(ctx context.Context, token common.Address, wallet string) (decimal.Decimal, error) {
	data, err := c.abi.Pack("balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "pack balanceOf call")
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	raw, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		metrics.ChainCalls.WithLabelValues("error").Inc()
		c.log.Warnw("Balance read failed",
			"token", token.Hex(),
			"wallet", wallet,
			"error", err,
		)
		return decimal.Zero, errors.Wrap(errors.ErrChainUnavailable, err.Error())
	}

	out, err := c.abi.Unpack("balanceOf", raw)
	if err != nil {
		metrics.ChainCalls.WithLabelValues("error").Inc()
		return decimal.Zero, errors.Wrap(err, "unpack balanceOf result")
	}

	bal, ok := out[0].(*big.Int)
	if !ok {
		metrics.ChainCalls.WithLabelValues("error").Inc()
		return decimal.Zero, errors.New("unexpected balanceOf return type")
	}

	metrics.ChainCalls.WithLabelValues("success").Inc()
	return decimal.NewFromBigInt(bal, 0).Shift(-c.decimals), nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}
