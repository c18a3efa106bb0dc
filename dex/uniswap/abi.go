package uniswap

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Pair contract ABI
const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// Factory contract ABI
const factoryABIJson = `[{
	"constant": true,
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"}
	],
	"name": "getPair",
	"outputs": [{"name": "pair", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// ERC20 metadata ABI
const erc20ABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "name",
	"outputs": [{"name": "", "type": "string"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "symbol",
	"outputs": [{"name": "", "type": "string"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "decimals",
	"outputs": [{"name": "", "type": "uint8"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Trader contract ABI, exposing the exchange registry of a network
const traderABIJson = `[{
	"inputs": [{"name": "id", "type": "uint256"}],
	"name": "queryDex",
	"outputs": [
		{"name": "id", "type": "uint256"},
		{"name": "fee", "type": "uint256"},
		{"name": "factory", "type": "address"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// Uniswap V3 QuoterV2 ABI
const quoterV2ABIJson = `[{
	"inputs": [{
		"components": [
			{"internalType": "address", "name": "tokenIn", "type": "address"},
			{"internalType": "address", "name": "tokenOut", "type": "address"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"},
			{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
		"name": "params",
		"type": "tuple"
	}],
	"name": "quoteExactInputSingle",
	"outputs": [
		{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
		{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
		{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
		{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// Parsed contract ABIs
var (
	PairABI     = mustParseABI("pair", pairABIJson)
	FactoryABI  = mustParseABI("factory", factoryABIJson)
	ERC20ABI    = mustParseABI("erc20", erc20ABIJson)
	TraderABI   = mustParseABI("trader", traderABIJson)
	QuoterV2ABI = mustParseABI("quoter", quoterV2ABIJson)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return parsed
}
