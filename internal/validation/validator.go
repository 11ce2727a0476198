// Package validation содержит чистые проверки структурных инвариантов между
// commitment, артефактом доказательства и его публичными входами.
package validation

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// Максимальная длина значения в байтах: хэш доказательства и элементы поля укладываются в 32 байта
	maxValueBytes = 32
)

//go:generate mockgen -source=validator.go -destination=mocks/mock_validator.go -package=mocks

// BindingVerifier - внешний примитив проверки, связывающий доказательство с commitment
type BindingVerifier interface {
	Verify(ctx context.Context, commitment, proofHash string, publicInputs []string) (bool, error)
}

// Result - итог проверки артефакта
type Result string

const (
	Accepted          Result = "accepted"
	RejectedMalformed Result = "rejected_malformed"
	RejectedMismatch  Result = "rejected_mismatch"
)

// Verdict - результат с причиной отказа
type Verdict struct {
	Result Result
	Reason string
}

// Accepted сообщает, принят ли артефакт
func (v Verdict) Accepted() bool {
	return v.Result == Accepted
}

// Validator проверяет артефакты доказательств. Не хранит и не изменяет состояние.
type Validator struct {
	verifier BindingVerifier
}

func NewValidator(verifier BindingVerifier) *Validator {
	return &Validator{verifier: verifier}
}

// ValidateArtifact проверяет формат артефакта и его привязку к commitment.
// Ошибка возвращается только если сам примитив проверки недоступен.
func (v *Validator) ValidateArtifact(ctx context.Context, commitment, proofHash string, publicInputs []string) (Verdict, error) {
	if !ValidateCommitment(commitment) {
		return Verdict{Result: RejectedMalformed, Reason: "malformed commitment"}, nil
	}
	if !WellFormedHex(proofHash) {
		return Verdict{Result: RejectedMalformed, Reason: "malformed proof_hash"}, nil
	}
	if len(publicInputs) == 0 {
		return Verdict{Result: RejectedMalformed, Reason: "public_inputs are empty"}, nil
	}
	for i, in := range publicInputs {
		if !WellFormedHex(in) {
			return Verdict{Result: RejectedMalformed, Reason: fmt.Sprintf("malformed public input #%d", i)}, nil
		}
	}

	ok, err := v.verifier.Verify(ctx, commitment, proofHash, publicInputs)
	if err != nil {
		return Verdict{}, fmt.Errorf("binding verification unavailable: %w", err)
	}
	if !ok {
		return Verdict{Result: RejectedMismatch, Reason: "proof is not bound to commitment"}, nil
	}
	return Verdict{Result: Accepted}, nil
}

// ValidateTransaction - проверка только формата хэша транзакции, сеть не опрашивается
func ValidateTransaction(txHash string) bool {
	if len(txHash) != 2+2*common.HashLength {
		return false
	}
	_, err := hexutil.Decode(txHash)
	return err == nil
}

// ValidateCommitment проверяет формат commitment
func ValidateCommitment(commitment string) bool {
	return WellFormedHex(commitment)
}

// WellFormedHex - 0x-префикс, четное число hex-цифр, от 1 до 32 байт
func WellFormedHex(s string) bool {
	b, err := hexutil.Decode(s)
	if err != nil {
		return false
	}
	return len(b) > 0 && len(b) <= maxValueBytes
}
