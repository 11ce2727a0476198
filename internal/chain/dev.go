package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/ethereum/go-ethereum/crypto"
)

// DevClient - локальная замена узла для режима разработки: транзакции подтверждаются
// через фиксированную задержку после отправки.
type DevClient struct {
	mu           sync.Mutex
	confirmAfter time.Duration
	nonce        uint64
	submitted    map[string]time.Time
	now          func() time.Time
}

func NewDevClient(confirmAfter time.Duration) *DevClient {
	return &DevClient{
		confirmAfter: confirmAfter,
		submitted:    make(map[string]time.Time),
		now:          time.Now,
	}
}

func (c *DevClient) SubmitVerificationTx(_ context.Context, proofHash string, publicInputs []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	payload := fmt.Sprintf("%s|%s|%d", proofHash, strings.Join(publicInputs, ","), c.nonce)
	txHash := crypto.Keccak256Hash([]byte(payload)).Hex()
	c.submitted[txHash] = c.now()
	return txHash, nil
}

func (c *DevClient) TransactionStatus(_ context.Context, txHash string) (models.BlockchainStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sentAt, ok := c.submitted[txHash]
	if !ok || c.now().Sub(sentAt) < c.confirmAfter {
		return models.ChainPending, nil
	}
	return models.ChainConfirmed, nil
}
