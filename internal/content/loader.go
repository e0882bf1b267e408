package content

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-playground/validator/v10"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/cryptoutil"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// maxSignatureSize bounds the detached signature object.
const maxSignatureSize int64 = 16 << 10

// SignatureVerifier checks a detached signature over a bundle archive.
// cryptoutil.KMSVerifier implements it.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

type LoaderOptions struct {
	Logger log.Logger

	SSMParam string `validate:"required"`
	S3Bucket string `validate:"required"`
	S3Prefix string

	// AWSConfig builds any client left nil below. When both are nil the
	// default credential chain is used.
	AWSConfig *aws.Config `validate:"-"`
	S3Client  S3API
	SSMClient SSMAPI

	// Verifier, when set, requires {hash}.tar.gz.sig next to each bundle.
	Verifier SignatureVerifier

	Limits  Limits
	Catalog catalog.Options `validate:"-"`
}

var validateOpts = validator.New(validator.WithRequiredStructEnabled())

type Loader struct {
	store    releaseStore
	verifier SignatureVerifier
	limits   Limits
	catalog  catalog.Options
	logger   log.Logger
}

func NewLoader(ctx context.Context, opts LoaderOptions) (*Loader, error) {
	if err := validateOpts.Struct(opts); err != nil {
		return nil, xerrors.Wrap(err, "content loader options")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	if opts.S3Client == nil || opts.SSMClient == nil {
		cfg, err := awsConfig(ctx, opts.AWSConfig)
		if err != nil {
			return nil, err
		}
		if opts.S3Client == nil {
			opts.S3Client = s3.NewFromConfig(cfg)
		}
		if opts.SSMClient == nil {
			opts.SSMClient = ssm.NewFromConfig(cfg)
		}
	}

	return &Loader{
		store: releaseStore{
			s3:     opts.S3Client,
			ssm:    opts.SSMClient,
			param:  opts.SSMParam,
			bucket: opts.S3Bucket,
			prefix: opts.S3Prefix,
		},
		verifier: opts.Verifier,
		limits:   opts.Limits.withDefaults(),
		catalog:  opts.Catalog,
		logger:   opts.Logger,
	}, nil
}

func awsConfig(ctx context.Context, cfg *aws.Config) (aws.Config, error) {
	if cfg != nil {
		return *cfg, nil
	}
	c, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, xerrors.Wrap(err, "load aws config")
	}
	return c, nil
}

// FetchCurrentBundleHash reads the published bundle hash from SSM.
func (l *Loader) FetchCurrentBundleHash(ctx context.Context) (string, error) {
	return l.store.currentHash(ctx)
}

// Download fetches the archive for hash and checks its digest and, with a
// verifier configured, its signature.
func (l *Loader) Download(ctx context.Context, hash string) ([]byte, error) {
	key := l.store.archiveKey(hash)
	start := time.Now()

	data, sum, err := l.store.get(ctx, key, l.limits.Archive)
	if err != nil {
		return nil, err
	}
	if !cryptoutil.HashEqual(sum, hash) {
		return nil, xerrors.Newf("checksum mismatch for %s: got %s", l.store.url(key), sum)
	}

	if l.verifier != nil {
		sig, _, err := l.store.get(ctx, key+".sig", maxSignatureSize)
		if err != nil {
			return nil, xerrors.Wrap(err, "fetch bundle signature")
		}
		if err := l.verifier.VerifySignature(ctx, data, sig); err != nil {
			return nil, xerrors.Wrapf(err, "verify signature of %s", l.store.url(key))
		}
	}

	l.logger.Info(ctx, "downloaded content bundle",
		"url", l.store.url(key),
		"bytes", len(data),
		"signed", l.verifier != nil,
		"duration", time.Since(start),
	)
	return data, nil
}

// Load fetches whatever bundle SSM currently names.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	hash, err := l.FetchCurrentBundleHash(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadHash(ctx, hash)
}

// LoadHash downloads, verifies and unpacks the bundle for hash and builds
// its docs catalog.
func (l *Loader) LoadHash(ctx context.Context, hash string) (*Snapshot, error) {
	data, err := l.Download(ctx, hash)
	if err != nil {
		return nil, err
	}
	fsys, err := unpack(data, l.limits)
	if err != nil {
		return nil, xerrors.Wrapf(err, "unpack bundle %s", shortHash(hash))
	}

	snap, err := NewSnapshot(ctx, fsys, Meta{
		Hash:       hash,
		Source:     SourceS3,
		VerifiedAt: time.Now().UTC(),
		Signed:     l.verifier != nil,
	}, l.catalog)
	if err != nil {
		return nil, err
	}

	kv := []any{
		"hash", shortHash(hash),
		"pages", snap.Catalog.Meta.Len(),
		"modules", snap.Catalog.Modules.Len(),
	}
	if p := snap.Provenance; p != nil {
		kv = append(kv, "version", p.Version, "commit", p.Source.CommitShort, "files", p.Summary.TotalFiles)
	} else {
		kv = append(kv, "provenance", false)
	}
	l.logger.Info(ctx, "loaded content bundle", kv...)
	return snap, nil
}

// LoadDir builds a snapshot from an unpacked bundle on disk.
func LoadDir(ctx context.Context, dir string, opts catalog.Options) (*Snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "stat content dir %s", dir)
	}
	if !info.IsDir() {
		return nil, xerrors.Newf("content dir %s is not a directory", dir)
	}
	return NewSnapshot(ctx, os.DirFS(dir), Meta{Source: SourceDisk, VerifiedAt: time.Now().UTC()}, opts)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
