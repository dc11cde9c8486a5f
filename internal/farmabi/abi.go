package farmabi

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event names shared by the encoder, the decoder and the aggregator.
const (
	EventContractCreated        = "ContractCreated"
	EventOwnershipOverridden    = "OwnershipOverridden"
	EventStaked                 = "Staked"
	EventWithdrawn              = "Withdrawn"
	EventRewardPaid             = "RewardPaid"
	EventRewardsEmissionStarted = "RewardsEmissionStarted"
	EventRewardsEmissionEnded   = "RewardsEmissionEnded"
	EventFeesRecovered          = "FeesRecovered"
	EventRewardTokenAdded       = "RewardTokenAdded"
	EventAddressPermissionSet   = "AddressPermissionSet"
	EventCoveragePaid           = "CoveragePaid"
	EventOwnershipTransferred   = "OwnershipTransferred"
)

const farmABIJSON = `[
  {"anonymous": false, "type": "event", "name": "Staked", "inputs": [
    {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
    {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "Withdrawn", "inputs": [
    {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
    {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "RewardPaid", "inputs": [
    {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
    {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
    {"indexed": false, "internalType": "uint256", "name": "reward", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "RewardsEmissionStarted", "inputs": [
    {"indexed": false, "internalType": "uint256[]", "name": "rewards", "type": "uint256[]"},
    {"indexed": false, "internalType": "uint256", "name": "duration", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "RewardsEmissionEnded", "inputs": []},
  {"anonymous": false, "type": "event", "name": "FeesRecovered", "inputs": [
    {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "RewardTokenAdded", "inputs": [
    {"indexed": true, "internalType": "address", "name": "token", "type": "address"}]},
  {"anonymous": false, "type": "event", "name": "AddressPermissionSet", "inputs": [
    {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
    {"indexed": false, "internalType": "bool", "name": "permitted", "type": "bool"}]},
  {"anonymous": false, "type": "event", "name": "CoveragePaid", "inputs": [
    {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
    {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}]},
  {"anonymous": false, "type": "event", "name": "OwnershipTransferred", "inputs": [
    {"indexed": true, "internalType": "address", "name": "previousOwner", "type": "address"},
    {"indexed": true, "internalType": "address", "name": "newOwner", "type": "address"}]},
  {"inputs": [], "name": "lpToken", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "name": "rewardTokens", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "", "type": "address"}], "name": "balances", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "periodFinish", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "collectedFees", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const factoryABIJSON = `[
  {"anonymous": false, "type": "event", "name": "ContractCreated", "inputs": [
    {"indexed": true, "internalType": "address", "name": "farm", "type": "address"},
    {"indexed": true, "internalType": "address", "name": "creator", "type": "address"}]},
  {"anonymous": false, "type": "event", "name": "OwnershipOverridden", "inputs": [
    {"indexed": true, "internalType": "address", "name": "farm", "type": "address"},
    {"indexed": true, "internalType": "address", "name": "newCreator", "type": "address"}]},
  {"inputs": [{"internalType": "address", "name": "creator", "type": "address"}, {"internalType": "address", "name": "lpToken", "type": "address"}], "name": "getFarm", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "farm", "type": "address"}], "name": "getCreator", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const oracleABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "tokenIn", "type": "address"}, {"internalType": "uint256", "name": "amountIn", "type": "uint256"}, {"internalType": "address", "name": "tokenOut", "type": "address"}], "name": "consult", "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "tokenA", "type": "address"}, {"internalType": "address", "name": "tokenB", "type": "address"}], "name": "update", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

type lazyABI struct {
	once   sync.Once
	source string
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.source))
	})
	return l.parsed, l.err
}

var (
	farmABI    = &lazyABI{source: farmABIJSON}
	factoryABI = &lazyABI{source: factoryABIJSON}
	oracleABI  = &lazyABI{source: oracleABIJSON}
)

// FarmABI returns the parsed farm ABI.
func FarmABI() (abi.ABI, error) {
	return farmABI.get()
}

// FactoryABI returns the parsed factory ABI.
func FactoryABI() (abi.ABI, error) {
	return factoryABI.get()
}

// OracleABI returns the parsed oracle ABI.
func OracleABI() (abi.ABI, error) {
	return oracleABI.get()
}
