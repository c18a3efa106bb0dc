package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// CallHandler answers one contract method given its decoded arguments
type CallHandler func(args []interface{}) ([]interface{}, error)

type boundMethod struct {
	method abi.Method
	fn     CallHandler
}

// FakeChain serves eth_call from registered contract method handlers. It is
// exposed to go-ethereum clients through an in-process RPC server.
type FakeChain struct {
	chainID  uint64
	mu       sync.RWMutex
	handlers map[common.Address]map[string]boundMethod

	Calls atomic.Int64
}

func NewFakeChain(chainID uint64) *FakeChain {
	return &FakeChain{
		chainID:  chainID,
		handlers: make(map[common.Address]map[string]boundMethod),
	}
}

// Handle registers fn for calls of method on the contract at address
func (f *FakeChain) Handle(t *testing.T, address common.Address, contractABI abi.ABI, method string, fn CallHandler) {
	t.Helper()

	m, ok := contractABI.Methods[method]
	if !ok {
		t.Fatalf("method %s not in ABI", method)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers[address] == nil {
		f.handlers[address] = make(map[string]boundMethod)
	}
	f.handlers[address][string(m.ID)] = boundMethod{method: m, fn: fn}
}

// Client dials the chain in-process
func (f *FakeChain) Client(t *testing.T) *ethclient.Client {
	t.Helper()

	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", &ethService{chain: f}); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	client := ethclient.NewClient(gethrpc.DialInProc(srv))
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return client
}

func (f *FakeChain) call(to common.Address, data []byte) ([]byte, error) {
	f.Calls.Add(1)

	if len(data) < 4 {
		return nil, errors.New("execution reverted")
	}

	f.mu.RLock()
	bm, ok := f.handlers[to][string(data[:4])]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.New("execution reverted")
	}

	args, err := bm.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", bm.method.Name, err)
	}
	out, err := bm.fn(args)
	if err != nil {
		return nil, err
	}
	return bm.method.Outputs.Pack(out...)
}

type callArgs struct {
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
}

type ethService struct {
	chain *FakeChain
}

func (s *ethService) ChainId(ctx context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(s.chain.chainID), nil
}

func (s *ethService) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if args.To == nil {
		return nil, errors.New("missing to address")
	}
	data := args.Input
	if len(data) == 0 {
		data = args.Data
	}
	return s.chain.call(*args.To, data)
}

func (s *ethService) GetCode(ctx context.Context, address common.Address, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	s.chain.mu.RLock()
	defer s.chain.mu.RUnlock()

	if _, ok := s.chain.handlers[address]; ok {
		return hexutil.Bytes{0x60, 0x80}, nil
	}
	return hexutil.Bytes{}, nil
}
