package content

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/cryptoutil"
	"github.com/keithlinneman/docsite/internal/log"
)

const (
	testParam  = "/docsite/content/hash"
	testBucket = "docsite-content"
	testPrefix = "bundles"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[testBucket+"/"+key] = data
}

type fakeSSM struct {
	mu    sync.Mutex
	value string
	err   error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if aws.ToString(in.Name) != testParam || !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)}}, nil
}

func (f *fakeSSM) set(value string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value, f.err = value, err
}

type fakeVerifier struct{ good []byte }

func (v fakeVerifier) VerifySignature(_ context.Context, _, sig []byte) error {
	if !bytes.Equal(sig, v.good) {
		return errors.New("signature does not verify")
	}
	return nil
}

type tarEntry struct {
	name string
	body string
	kind byte
}

func tarGz(t testing.TB, entries ...tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		kind := e.kind
		if kind == 0 {
			kind = tar.TypeReg
		}
		hdr := &tar.Header{Name: e.name, Typeflag: kind, Mode: 0o644, Size: int64(len(e.body))}
		if kind != tar.TypeReg {
			hdr.Size = 0
			hdr.Linkname = e.body
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if kind == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// docsFiles is a small bundle that passes DefaultValidationOptions.
func docsFiles(version string) map[string]string {
	return map[string]string{
		"meta.json":                   `{"core-concepts":{"core-concepts":{"title":"Core concepts","path":"core-concepts/index"}},"tools":{"cli":{"title":"CLI","resourceUri":"https://example.com/cli.md"}}}`,
		"team.json":                   `{"team":[{"name":"Ada","title":"CEO"}]}`,
		"mdx/core-concepts/index.mdx": "# Core concepts\n\n## Accounts\n",
		"provenance.json":             `{"version":"` + version + `","content_hash":"abc","source":{"commit_short":"abc123"}}`,
	}
}

func docsArchive(t testing.TB, version string) ([]byte, string) {
	t.Helper()
	var entries []tarEntry
	for name, body := range docsFiles(version) {
		entries = append(entries, tarEntry{name: name, body: body})
	}
	data := tarGz(t, entries...)
	return data, cryptoutil.SHA256Hex(data)
}

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func snapshotOf(t testing.TB, files map[string]string) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(context.Background(), mapFS(files), Meta{Source: SourceDisk}, catalog.Options{})
	require.NoError(t, err)
	return snap
}

type release struct {
	s3  *fakeS3
	ssm *fakeSSM
}

// publish uploads an archive the way release tooling does and points the
// parameter at it.
func (r *release) publish(t testing.TB, data []byte, sig []byte) string {
	t.Helper()
	hash := cryptoutil.SHA256Hex(data)
	r.s3.put(testPrefix+"/"+hash+".tar.gz", data)
	if sig != nil {
		r.s3.put(testPrefix+"/"+hash+".tar.gz.sig", sig)
	}
	r.ssm.set(hash, nil)
	return hash
}

func newRelease(t testing.TB, opts ...func(*LoaderOptions)) (*release, *Loader) {
	t.Helper()
	r := &release{s3: &fakeS3{}, ssm: &fakeSSM{}}
	o := LoaderOptions{
		Logger:    log.Nop(),
		SSMParam:  testParam,
		S3Bucket:  testBucket,
		S3Prefix:  testPrefix,
		S3Client:  r.s3,
		SSMClient: r.ssm,
	}
	for _, fn := range opts {
		fn(&o)
	}
	l, err := NewLoader(context.Background(), o)
	require.NoError(t, err)
	return r, l
}
