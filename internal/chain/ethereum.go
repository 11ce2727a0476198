// Package chain - клиенты блокчейна для отправки транзакций проверки доказательств.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// verifierABI - контракт-верификатор, принимающий хэш доказательства и публичные входы
const verifierABI = `[{
	"type": "function",
	"name": "verifyIncidentProof",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "proofHash", "type": "bytes32"},
		{"name": "publicInputs", "type": "uint256[]"}
	],
	"outputs": []
}]`

const verifyMethod = "verifyIncidentProof"

// Ошибки узла, после которых повтор той же транзакции бессмыслен
var permanentRPCErrors = []string{
	"insufficient funds",
	"execution reverted",
	"invalid sender",
	"exceeds block gas limit",
}

// Backend - подмножество ethclient.Client, которое использует клиент
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

type Config struct {
	RPCURL        string
	ChainID       int64
	PrivateKey    string
	Contract      string
	Confirmations uint64
	GasLimit      uint64
}

// EthereumClient подписывает и отправляет вызовы контракта-верификатора и
// определяет финальность по глубине подтверждений.
type EthereumClient struct {
	backend       Backend
	contract      common.Address
	chainID       *big.Int
	key           *ecdsa.PrivateKey
	from          common.Address
	confirmations uint64
	gasLimit      uint64
	abi           abi.ABI
	logger        *logrus.Logger
}

// Dial подключается к узлу по CHAIN_RPC_URL
func Dial(ctx context.Context, cfg Config, logger *logrus.Logger) (*EthereumClient, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain rpc: %w", err)
	}
	return NewEthereumClient(backend, cfg, logger)
}

func NewEthereumClient(backend Backend, cfg Config, logger *logrus.Logger) (*EthereumClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid verifier contract address %q", cfg.Contract)
	}
	parsed, err := abi.JSON(strings.NewReader(verifierABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse verifier abi: %w", err)
	}
	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}

	return &EthereumClient{
		backend:       backend,
		contract:      common.HexToAddress(cfg.Contract),
		chainID:       big.NewInt(cfg.ChainID),
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		confirmations: confirmations,
		gasLimit:      cfg.GasLimit,
		abi:           parsed,
		logger:        logger,
	}, nil
}

// PackVerification кодирует вызов verifyIncidentProof(bytes32, uint256[])
func (c *EthereumClient) PackVerification(proofHash string, publicInputs []string) ([]byte, error) {
	hashBytes, err := hexutil.Decode(proofHash)
	if err != nil || len(hashBytes) > common.HashLength {
		return nil, fmt.Errorf("proof hash %q is not a bytes32 value", proofHash)
	}
	inputs := make([]*big.Int, len(publicInputs))
	for i, input := range publicInputs {
		raw, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("public input %d: %w", i, err)
		}
		inputs[i] = new(big.Int).SetBytes(raw)
	}
	return c.abi.Pack(verifyMethod, common.BytesToHash(hashBytes), inputs)
}

func (c *EthereumClient) SubmitVerificationTx(ctx context.Context, proofHash string, publicInputs []string) (string, error) {
	log := c.logger.WithFields(logrus.Fields{
		"component":  "chain",
		"method":     "SubmitVerificationTx",
		"proof_hash": proofHash,
	})

	data, err := c.PackVerification(proofHash, publicInputs)
	if err != nil {
		return "", &models.SubmissionError{Permanent: true, Err: err}
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", classify(fmt.Errorf("failed to get nonce: %w", err))
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", classify(fmt.Errorf("failed to suggest gas price: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", &models.SubmissionError{Permanent: true, Err: fmt.Errorf("failed to sign transaction: %w", err)}
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", classify(fmt.Errorf("failed to send transaction: %w", err))
	}
	log.WithFields(logrus.Fields{"transaction_hash": signed.Hash().Hex(), "nonce": nonce}).Info("Verification transaction sent")
	return signed.Hash().Hex(), nil
}

// TransactionStatus возвращает pending, пока квитанции нет или глубина подтверждений
// недостаточна; failed для откаченной транзакции; confirmed после финальности.
func (c *EthereumClient) TransactionStatus(ctx context.Context, txHash string) (models.BlockchainStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return models.ChainPending, nil
	}
	if err != nil {
		return "", &models.TransientError{Op: "fetch transaction receipt", Err: err}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return models.ChainFailed, nil
	}

	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return "", &models.TransientError{Op: "fetch block number", Err: err}
	}
	if receipt.BlockNumber == nil || head+1 < receipt.BlockNumber.Uint64()+c.confirmations {
		return models.ChainPending, nil
	}
	return models.ChainConfirmed, nil
}

// WatchTransaction переопрашивает статус на каждом новом блоке. Для HTTP-узлов подписка
// недоступна, и трекер переходит на опрос.
func (c *EthereumClient) WatchTransaction(ctx context.Context, txHash string) (<-chan models.BlockchainStatus, error) {
	heads := make(chan *types.Header, 16)
	sub, err := c.backend.SubscribeNewHead(ctx, heads)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to new heads: %w", err)
	}

	out := make(chan models.BlockchainStatus, 1)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		var last models.BlockchainStatus
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					c.logger.WithError(err).WithField("transaction_hash", txHash).Warn("Head subscription dropped")
				}
				return
			case <-heads:
				status, err := c.TransactionStatus(ctx, txHash)
				if err != nil || status == last {
					continue
				}
				last = status
				select {
				case out <- status:
				case <-ctx.Done():
					return
				}
				if status == models.ChainConfirmed || status == models.ChainFailed {
					return
				}
			}
		}
	}()
	return out, nil
}

// From возвращает адрес подписанта
func (c *EthereumClient) From() common.Address {
	return c.from
}

// classify разделяет ошибки узла на постоянные и временные
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentRPCErrors {
		if strings.Contains(msg, marker) {
			return &models.SubmissionError{Permanent: true, Err: err}
		}
	}
	return &models.SubmissionError{Err: err}
}
