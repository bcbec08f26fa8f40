package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256)
var erc20TransferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// TreasuryClient pays out withdrawals from the custody hot wallet by sending
// ERC-20 transfers on the settlement chain. It satisfies the vault's Treasury
// hook.
type TreasuryClient struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	gasLimit   uint64
}

// NewTreasuryClient connects to the RPC endpoint and loads the hot wallet key
func NewTreasuryClient(rpcURL, privateKeyHex string, gasLimit uint64) (*TreasuryClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse treasury private key: %w", err)
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	if gasLimit == 0 {
		gasLimit = 100000 // plain ERC-20 transfer
	}

	log.Printf("✅ Treasury wallet ready: %s (chain %s)", from.Hex(), chainID.String())

	return &TreasuryClient{
		client:     client,
		privateKey: privateKey,
		from:       from,
		chainID:    chainID,
		gasLimit:   gasLimit,
	}, nil
}

// Transfer sends an ERC-20 transfer of amount to owner from the hot wallet
func (t *TreasuryClient) Transfer(owner, asset common.Address, amount *big.Int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(5000000000) // 5 Gwei
		log.Printf("⚠️ Failed to get suggested gas price, using default: %s wei", gasPrice.String())
	} else {
		gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(120))
		gasPrice = gasPrice.Div(gasPrice, big.NewInt(100))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &asset,
		Value:    big.NewInt(0),
		Gas:      t.gasLimit,
		GasPrice: gasPrice,
		Data:     buildTransferCallData(owner, amount),
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(t.chainID), t.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	log.Printf("🚀 Treasury transfer sent: %s -> %s amount=%s tx=%s",
		asset.Hex(), owner.Hex(), amount.String(), signedTx.Hash().Hex())
	return nil
}

// Address returns the hot wallet address
func (t *TreasuryClient) Address() common.Address {
	return t.from
}

// Close releases the RPC connection
func (t *TreasuryClient) Close() {
	t.client.Close()
}

// buildTransferCallData ABI-encodes transfer(to, amount)
func buildTransferCallData(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
