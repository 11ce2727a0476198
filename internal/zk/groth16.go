// Package zk проверяет, что артефакт доказательства связан с commitment инцидента.
package zk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

const curve = ecc.BN254

// gnark логирует через глобальный zerolog
var gnarkLoggerOnce sync.Once

func silenceGnark() {
	gnarkLoggerOnce.Do(func() {
		gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	})
}

// BlobSource выдает сериализованное доказательство по его хэшу
type BlobSource interface {
	Blob(ctx context.Context, proofHash string) ([]byte, error)
}

// BindingCircuit задает раскладку публичного witness: commitment инцидента и публичные
// входы в порядке, в котором их отдает сервис генерации. Ограничения самой схемы
// зафиксированы в ключе проверки.
type BindingCircuit struct {
	Commitment frontend.Variable   `gnark:",public"`
	Inputs     []frontend.Variable `gnark:",public"`
}

func (c *BindingCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Commitment, c.Commitment)
	for _, input := range c.Inputs {
		api.AssertIsEqual(input, input)
	}
	return nil
}

// Groth16Verifier проверяет доказательство Groth16 (BN254) против commitment и публичных входов
type Groth16Verifier struct {
	vk     groth16.VerifyingKey
	blobs  BlobSource
	logger *logrus.Logger
}

func NewGroth16Verifier(vk groth16.VerifyingKey, blobs BlobSource, logger *logrus.Logger) *Groth16Verifier {
	silenceGnark()
	return &Groth16Verifier{vk: vk, blobs: blobs, logger: logger}
}

// LoadVerifyingKey читает ключ проверки из файла VERIFYING_KEY_PATH
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open verifying key: %w", err)
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}
	return vk, nil
}

// Verify возвращает false, если доказательство не связано с commitment, и ошибку,
// если проверку выполнить не удалось (хранилище доказательств недоступно).
func (v *Groth16Verifier) Verify(ctx context.Context, commitment, proofHash string, publicInputs []string) (bool, error) {
	log := v.logger.WithFields(logrus.Fields{
		"component":  "zk",
		"method":     "Verify",
		"proof_hash": proofHash,
	})

	blob, err := v.blobs.Blob(ctx, proofHash)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Proof blob not found")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load proof blob: %w", err)
	}

	expected, err := hexutil.Decode(proofHash)
	if err != nil || !bytes.Equal(crypto.Keccak256(blob), expected) {
		log.Warn("Proof blob does not hash to proof_hash")
		return false, nil
	}

	proof := groth16.NewProof(curve)
	if _, err := proof.ReadFrom(bytes.NewReader(blob)); err != nil {
		log.WithError(err).Warn("Failed to decode proof")
		return false, nil
	}

	publicWitness, err := PublicWitness(commitment, publicInputs)
	if err != nil {
		log.WithError(err).Warn("Failed to build public witness")
		return false, nil
	}

	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		log.WithError(err).Info("Proof is not bound to commitment")
		return false, nil
	}
	return true, nil
}

// PublicWitness строит публичный witness из commitment и публичных входов
func PublicWitness(commitment string, publicInputs []string) (witness.Witness, error) {
	c, err := hexutil.Decode(commitment)
	if err != nil {
		return nil, fmt.Errorf("commitment: %w", err)
	}
	assignment := BindingCircuit{
		Commitment: new(big.Int).SetBytes(c),
		Inputs:     make([]frontend.Variable, len(publicInputs)),
	}
	for i, input := range publicInputs {
		raw, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("public input %d: %w", i, err)
		}
		assignment.Inputs[i] = new(big.Int).SetBytes(raw)
	}
	return frontend.NewWitness(&assignment, curve.ScalarField(), frontend.PublicOnly())
}

// InsecureVerifier принимает любой артефакт. Только для режима разработки без ключа проверки.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(context.Context, string, string, []string) (bool, error) {
	return true, nil
}
