package content

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/docsite/internal/xerrors"
)

// S3API is the part of the S3 client the loader calls.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SSMAPI is the part of the SSM client the loader calls.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// releaseStore is where published bundles live: the SSM parameter naming
// the current hash and the S3 objects {prefix}/{hash}.tar.gz[.sig].
type releaseStore struct {
	s3     S3API
	ssm    SSMAPI
	param  string
	bucket string
	prefix string
}

func (s *releaseStore) currentHash(ctx context.Context) (string, error) {
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get ssm parameter %s", s.param)
	}
	var hash string
	if out.Parameter != nil {
		hash = strings.TrimSpace(aws.ToString(out.Parameter.Value))
	}
	if hash == "" {
		return "", xerrors.Newf("ssm parameter %s is empty", s.param)
	}
	return hash, nil
}

func (s *releaseStore) archiveKey(hash string) string {
	return path.Join(s.prefix, hash+".tar.gz")
}

func (s *releaseStore) url(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// get reads one object, failing once it passes limit bytes. The returned
// hash is the hex SHA-256 of the body.
func (s *releaseStore) get(ctx context.Context, key string, limit int64) ([]byte, string, error) {
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "get %s", s.url(key))
	}
	defer out.Body.Close()

	data, sum, err := readHashed(out.Body, limit)
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "read %s", s.url(key))
	}
	return data, sum, nil
}
