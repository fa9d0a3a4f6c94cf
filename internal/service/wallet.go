package service

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dvote-dapp/dvote/internal/domain"
)

// OwnershipProof is what a client sends to prove it controls a wallet.
// Signature and Message are an optional personal_sign pair.
type OwnershipProof struct {
	Address   string
	Signature string
	Message   string
}

type WalletService struct {
	requireSignature bool
}

func NewWalletService(config *domain.Config) *WalletService {
	return &WalletService{requireSignature: config.RequireWalletSignature}
}

var errWalletMismatch = domain.UnauthenticatedError{Reason: "Signature verification failed or wallet mismatch."}

// VerifyOwnership checks that proof names the account's wallet and, when a
// signature is present or required, that the wallet signed the message.
func (s *WalletService) VerifyOwnership(account domain.Account, proof OwnershipProof) error {
	address := strings.TrimSpace(proof.Address)
	if address == "" {
		return domain.ValidationError{Reason: "Address is required."}
	}
	if !strings.EqualFold(address, strings.TrimSpace(account.WalletAddress)) {
		return errWalletMismatch
	}

	if proof.Signature == "" && proof.Message == "" {
		if s.requireSignature {
			return domain.UnauthenticatedError{Reason: "A signed message is required."}
		}
		return nil
	}
	if proof.Signature == "" || proof.Message == "" {
		return domain.ValidationError{Reason: "Signature and message must be sent together."}
	}

	signer, err := RecoverSigner(proof.Message, proof.Signature)
	if err != nil {
		return errWalletMismatch
	}
	if signer != common.HexToAddress(account.WalletAddress) {
		return errWalletMismatch
	}
	return nil
}

// RecoverSigner returns the address that produced a personal_sign signature.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, domain.ValidationError{Reason: "signature must be 65 bytes"}
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
