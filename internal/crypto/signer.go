package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// EIP712Domain(string name,string version)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version)"),
	)

	// Request(string method,string path,bytes32 body,uint256 timestamp)
	requestTypeHash = ethcrypto.Keccak256(
		[]byte("Request(string method,string path,bytes32 body,uint256 timestamp)"),
	)

	domainSeparator = ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte("SportsXchange")),
			ethcrypto.Keccak256([]byte("1")),
		),
	)
)

// Signer signs API requests with a secp256k1 key. The scheduler uses it to
// act as market authority; clients use the same scheme.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the checksummed address of the signer.
func (s *Signer) Address() string { return s.address.Hex() }

// SignRequest signs an HTTP request and returns a 65-byte hex signature.
func (s *Signer) SignRequest(method, path string, body []byte, timestamp int64) (string, error) {
	sig, err := ethcrypto.Sign(requestDigest(method, path, body, timestamp), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	// go-ethereum returns v in {0,1}; wallets produce {27,28}.
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverRequestSigner returns the address that produced signature over the
// request. Both v encodings are accepted.
func RecoverRequestSigner(method, path string, body []byte, timestamp int64, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return "", fmt.Errorf("crypto/signer: malformed signature: %w", domain.ErrUnauthorized)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(requestDigest(method, path, body, timestamp), sig)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: recover: %v: %w", err, domain.ErrUnauthorized)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// requestDigest is keccak256("\x19\x01" || domainSeparator || hashStruct(request)).
func requestDigest(method, path string, body []byte, timestamp int64) []byte {
	structHash := ethcrypto.Keccak256(
		concatBytes(
			requestTypeHash,
			ethcrypto.Keccak256([]byte(strings.ToUpper(method))),
			ethcrypto.Keccak256([]byte(path)),
			ethcrypto.Keccak256(body),
			common.LeftPadBytes(big.NewInt(timestamp).Bytes(), 32),
		),
	)
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, domainSeparator, structHash))
}

func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
