package cryptoutil

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

// ErrBadSignature is wrapped by VerifySignature when the key is usable
// but the signature does not match the message.
var ErrBadSignature = errors.New("signature does not verify")

// publicKeyAPI is the part of the KMS client the verifier calls.
type publicKeyAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// KMSVerifier checks bundle signatures made with an asymmetric KMS key.
// The public key is fetched on first use and cached; concurrent first
// uses share one GetPublicKey call.
type KMSVerifier struct {
	api    publicKeyAPI
	keyARN string
	pkcs1  bool

	key    atomic.Pointer[crypto.PublicKey]
	flight singleflight.Group
}

type VerifierOption func(*KMSVerifier)

// WithPKCS1v15Fallback accepts RSA PKCS#1 v1.5 signatures when PSS fails.
// Only bundles signed before the switch to PSS need it.
func WithPKCS1v15Fallback() VerifierOption {
	return func(v *KMSVerifier) { v.pkcs1 = true }
}

func NewKMSVerifier(client *kms.Client, keyARN string, opts ...VerifierOption) *KMSVerifier {
	v := &KMSVerifier{keyARN: keyARN}
	if client != nil {
		v.api = client
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *KMSVerifier) errs() oops.OopsErrorBuilder {
	return oops.In("cryptoutil").With("key_arn", v.keyARN)
}

// PublicKey returns the cached key, fetching it from KMS on first use.
// Failed fetches are not cached.
func (v *KMSVerifier) PublicKey(ctx context.Context) (crypto.PublicKey, error) {
	if k := v.key.Load(); k != nil {
		return *k, nil
	}
	if v.api == nil {
		return nil, v.errs().Code("KMS_UNCONFIGURED").New("kms client is not configured")
	}
	res, err, _ := v.flight.Do("pub", func() (any, error) {
		if k := v.key.Load(); k != nil {
			return *k, nil
		}
		pub, err := v.fetch(ctx)
		if err != nil {
			return nil, err
		}
		v.key.Store(&pub)
		return pub, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(crypto.PublicKey), nil
}

func (v *KMSVerifier) fetch(ctx context.Context) (crypto.PublicKey, error) {
	out, err := v.api.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(v.keyARN)})
	if err != nil {
		return nil, v.errs().Code("KMS_GET_PUBLIC_KEY").Wrapf(err, "kms get public key")
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, v.errs().
			Code("KMS_KEY_USAGE").
			Hint("the content signing key must be an asymmetric SIGN_VERIFY key").
			Errorf("key usage is %s", out.KeyUsage)
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, v.errs().Code("KMS_PUBLIC_KEY_DER").Wrapf(err, "parse kms public key")
	}
	return pub, nil
}

// VerifySignature checks signature over message with the KMS key. ECDSA
// keys hash with SHA-256 on P-256 and SHA-384 on P-384. RSA keys use
// SHA-256 with PSS, and PKCS#1 v1.5 only when the fallback is enabled.
func (v *KMSVerifier) VerifySignature(ctx context.Context, message, signature []byte) error {
	pub, err := v.PublicKey(ctx)
	if err != nil {
		return err
	}
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		return verifyECDSA(key, message, signature)
	case *rsa.PublicKey:
		return verifyRSA(key, message, signature, v.pkcs1)
	default:
		return oops.In("cryptoutil").Code("KEY_TYPE").Errorf("unsupported public key type %T", pub)
	}
}

func verifyECDSA(key *ecdsa.PublicKey, message, signature []byte) error {
	var digest []byte
	switch key.Curve {
	case elliptic.P256():
		sum := sha256.Sum256(message)
		digest = sum[:]
	case elliptic.P384():
		sum := sha512.Sum384(message)
		digest = sum[:]
	default:
		return oops.In("cryptoutil").Code("KEY_TYPE").Errorf("unsupported ECDSA curve %s", key.Curve.Params().Name)
	}
	if !ecdsa.VerifyASN1(key, digest, signature) {
		return oops.In("cryptoutil").
			Code("BAD_SIGNATURE").
			With("curve", key.Curve.Params().Name).
			Wrap(ErrBadSignature)
	}
	return nil
}

func verifyRSA(key *rsa.PublicKey, message, signature []byte, pkcs1 bool) error {
	digest := sha256.Sum256(message)
	err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil)
	if err != nil && pkcs1 {
		err = rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature)
	}
	if err != nil {
		return oops.In("cryptoutil").
			Code("BAD_SIGNATURE").
			With("scheme", rsaScheme(pkcs1), "cause", err.Error()).
			Wrap(ErrBadSignature)
	}
	return nil
}

func rsaScheme(pkcs1 bool) string {
	if pkcs1 {
		return "pss+pkcs1v15"
	}
	return "pss"
}
