package evm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

var (
	testPairAddr = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
	testWallet   = "0x000000000000000000000000000000000000dEaD"
)

func mustABI(t *testing.T, def string) abi.ABI {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return a
}

type fakeChain struct {
	t        *testing.T
	factory  abi.ABI
	pair     abi.ABI
	router   abi.ABI
	erc20    abi.ABI
	pairAddr common.Address
	token0   common.Address
	r0, r1   *big.Int
	quoteOut *big.Int
	balance  *big.Int
	head     time.Time
	gasWei   *big.Int
	err      error
	calls    map[string]int
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t:        t,
		factory:  mustABI(t, FactoryABI),
		pair:     mustABI(t, PairABI),
		router:   mustABI(t, RouterABI),
		erc20:    mustABI(t, ERC20ABI),
		pairAddr: testPairAddr,
		head:     time.Now(),
		gasWei:   big.NewInt(20e9),
		calls:    make(map[string]int),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	sel := msg.Data[:4]
	pack := func(a abi.ABI, method string, vals ...any) ([]byte, error) {
		f.calls[method]++
		return a.Methods[method].Outputs.Pack(vals...)
	}
	switch {
	case bytes.Equal(sel, f.factory.Methods["getPair"].ID):
		return pack(f.factory, "getPair", f.pairAddr)
	case bytes.Equal(sel, f.pair.Methods["getReserves"].ID):
		return pack(f.pair, "getReserves", f.r0, f.r1, uint32(0))
	case bytes.Equal(sel, f.pair.Methods["token0"].ID):
		return pack(f.pair, "token0", f.token0)
	case bytes.Equal(sel, f.router.Methods["getAmountsOut"].ID):
		args, err := f.router.Methods["getAmountsOut"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		return pack(f.router, "getAmountsOut", []*big.Int{args[0].(*big.Int), f.quoteOut})
	case bytes.Equal(sel, f.erc20.Methods["balanceOf"].ID):
		return pack(f.erc20, "balanceOf", f.balance)
	}
	f.t.Fatalf("unexpected selector %x", sel)
	return nil, nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Header{Time: uint64(f.head.Unix())}, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasWei, nil
}

type recordingSender struct {
	network string
	to      common.Address
	data    []byte
}

func (s *recordingSender) Send(_ context.Context, network string, to common.Address, data []byte) (string, error) {
	s.network, s.to, s.data = network, to, data
	return "0xabc", nil
}

func newTestVenue(t *testing.T, chain *fakeChain, sender TxSender) *Venue {
	t.Helper()
	v, err := NewVenue(config.DEXConfig{
		Name:    "uniswap-v2",
		Network: "ethereum",
		Kind:    config.KindUniswapV2,
		Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		Router:  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		Fee:     0.003,
		Pairs:   []string{"WETH/USDT"},
	}, config.NetworkConfig{
		Name:        "ethereum",
		ChainID:     asset.ChainIDEthereum,
		BlockTime:   12 * time.Second,
		HighGasGwei: 100,
	}, testWallet, chain, sender, asset.DefaultRegistry(), logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewVenue: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestVenue_PoolOrdersReservesByBase(t *testing.T) {
	chain := newFakeChain(t)
	chain.token0 = asset.AddrUSDTEthereum
	chain.r0 = new(big.Int).Mul(big.NewInt(3_000_000), big.NewInt(1e6))
	chain.r1 = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	v := newTestVenue(t, chain, &recordingSender{})

	ctx := context.Background()
	pair := domain.MustParsePair("WETH/USDT")

	pool, err := v.Pool(ctx, pair)
	if err != nil {
		t.Fatalf("Pool: %v", err)
	}
	if !pool.Reserve0.Equal(decimal.NewFromInt(1000)) || !pool.Reserve1.Equal(decimal.NewFromInt(3_000_000)) {
		t.Errorf("reserves = %s/%s, want 1000/3000000", pool.Reserve0, pool.Reserve1)
	}
	if !pool.Price().Equal(decimal.NewFromInt(3000)) {
		t.Errorf("price = %s, want 3000", pool.Price())
	}
	if !pool.Fee.Equal(decimal.RequireFromString("0.003")) {
		t.Errorf("fee = %s, want 0.003", pool.Fee)
	}

	if _, err := v.Pool(ctx, pair); err != nil {
		t.Fatalf("second Pool: %v", err)
	}
	if chain.calls["getPair"] != 1 {
		t.Errorf("getPair calls = %d, want 1 (cached)", chain.calls["getPair"])
	}
}

func TestVenue_PoolNotDeployed(t *testing.T) {
	chain := newFakeChain(t)
	chain.pairAddr = common.Address{}
	v := newTestVenue(t, chain, &recordingSender{})

	pool, err := v.Pool(context.Background(), domain.MustParsePair("WETH/USDT"))
	if pool != nil || err != nil {
		t.Errorf("Pool = %v, %v, want nil, nil", pool, err)
	}
}

func TestVenue_PoolRPCFailure(t *testing.T) {
	chain := newFakeChain(t)
	chain.err = errors.New("connection refused")
	v := newTestVenue(t, chain, &recordingSender{})

	_, err := v.Pool(context.Background(), domain.MustParsePair("WETH/USDT"))
	if !apperror.HasCode(err, apperror.CodeAdapterUnavailable) {
		t.Errorf("err = %v, want ADAPTER_UNAVAILABLE", err)
	}

	_, err = v.Pool(context.Background(), domain.MustParsePair("DOGE/USDT"))
	if !apperror.HasCode(err, apperror.CodeTokenNotFound) {
		t.Errorf("unknown token err = %v, want TOKEN_NOT_FOUND", err)
	}
}

func TestVenue_Status(t *testing.T) {
	tests := []struct {
		name string
		head time.Duration
		gwei int64
		err  error
		want domain.DEXStatus
	}{
		{"fresh_cheap", -5 * time.Second, 20, nil, domain.DEXOnline},
		{"expensive_gas", -5 * time.Second, 150, nil, domain.DEXHighGas},
		{"stale_head", -time.Hour, 20, nil, domain.DEXError},
		{"rpc_down", 0, 20, errors.New("dial tcp: refused"), domain.DEXOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain(t)
			chain.head = time.Now().Add(tt.head)
			chain.gasWei = new(big.Int).Mul(big.NewInt(tt.gwei), big.NewInt(1e9))
			chain.err = tt.err
			v := newTestVenue(t, chain, &recordingSender{})

			if got := v.Status(context.Background()); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVenue_SwapBoundsMinOut(t *testing.T) {
	chain := newFakeChain(t)
	chain.quoteOut = big.NewInt(1e18)
	sender := &recordingSender{}
	v := newTestVenue(t, chain, sender)

	ref, err := v.Swap(context.Background(), "USDT", "WETH", decimal.NewFromInt(3000), decimal.RequireFromString("0.005"))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if ref != "0xabc" || sender.network != "ethereum" {
		t.Errorf("ref = %q network = %q", ref, sender.network)
	}
	if sender.to != common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D") {
		t.Errorf("swap sent to %s, want router", sender.to.Hex())
	}

	method := chain.router.Methods["swapExactTokensForTokens"]
	if !bytes.Equal(sender.data[:4], method.ID) {
		t.Fatalf("selector = %x, want swapExactTokensForTokens", sender.data[:4])
	}
	args, err := method.Inputs.Unpack(sender.data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got := args[0].(*big.Int); got.Cmp(big.NewInt(3000e6)) != 0 {
		t.Errorf("amountIn = %s, want 3000e6", got)
	}
	wantMin := new(big.Int).Mul(big.NewInt(995), big.NewInt(1e15))
	if got := args[1].(*big.Int); got.Cmp(wantMin) != 0 {
		t.Errorf("amountOutMin = %s, want %s", got, wantMin)
	}
	path := args[2].([]common.Address)
	if len(path) != 2 || path[0] != asset.AddrUSDTEthereum || path[1] != asset.AddrWETHEthereum {
		t.Errorf("path = %v", path)
	}
}

func TestVenue_TokenBalance(t *testing.T) {
	chain := newFakeChain(t)
	chain.balance = big.NewInt(12_500_000)
	v := newTestVenue(t, chain, &recordingSender{})

	got, err := v.TokenBalance(context.Background(), "usdt", testWallet)
	if err != nil {
		t.Fatalf("TokenBalance: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("balance = %s, want 12.5", got)
	}

	if _, err := v.TokenBalance(context.Background(), "ETH", testWallet); !apperror.HasCode(err, apperror.CodeTokenNotFound) {
		t.Errorf("native balance err = %v, want TOKEN_NOT_FOUND", err)
	}
}
