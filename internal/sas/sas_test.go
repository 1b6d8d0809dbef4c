package sas

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/storage"
)

type failingKeySource struct {
	err error
}

func (f *failingKeySource) UserDelegationCredential(context.Context, string, time.Time, time.Time) (*service.UserDelegationCredential, error) {
	return nil, f.err
}

func (f *failingKeySource) BlobURL(account, container, blob string) string {
	return "https://" + account + ".blob.core.windows.net/" + container + "/" + blob
}

func testStorageConfig() config.StorageConfig {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg.Storage
}

func TestSharedKeySigner_SignFileURL(t *testing.T) {
	signer := NewSharedKeySigner(testStorageConfig())
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	expiry := time.Now().Add(15 * time.Minute)

	signed, err := signer.SignFileURL("stfileswedencentral", key, "copytest", "test-from-westeurope.txt", expiry, FilePermissions{Create: true, Write: true})
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "stfileswedencentral.file.core.windows.net", u.Host)
	assert.Equal(t, "/copytest/test-from-westeurope.txt", u.Path)

	q := u.Query()
	assert.Equal(t, "cw", q.Get("sp"))
	assert.Equal(t, "f", q.Get("sr"))
	assert.Equal(t, "https", q.Get("spr"))
	assert.NotEmpty(t, q.Get("sig"))
	assert.True(t, strings.HasPrefix(q.Get("se"), expiry.UTC().Format("2006-01-02T15:04")))
}

func TestSharedKeySigner_InvalidKey(t *testing.T) {
	signer := NewSharedKeySigner(testStorageConfig())

	_, err := signer.SignFileURL("stfileswedencentral", "%%%not-base64", "copytest", "f.txt", time.Now().Add(time.Minute), FilePermissions{Write: true})
	require.Error(t, err)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, KindInvalidCredential, credErr.Kind)
	assert.Equal(t, "stfileswedencentral", credErr.Account)
}

func TestDelegatedSigner_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"forbidden", &storage.ProviderError{Op: "get user delegation key", StatusCode: http.StatusForbidden}, KindAuthorization},
		{"unauthorized", &storage.ProviderError{Op: "get user delegation key", StatusCode: http.StatusUnauthorized}, KindAuthorization},
		{"not found", &storage.ProviderError{Op: "get user delegation key", StatusCode: http.StatusNotFound}, KindNotFound},
		{"transport", errors.New("no such host"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := NewDelegatedSigner(&failingKeySource{err: tt.err})

			_, err := signer.SignBlobURL(context.Background(), "stblobwesteurope", "copytest", "test.txt", time.Now().Add(time.Minute), BlobPermissions{Read: true, Write: true})
			require.Error(t, err)

			var credErr *CredentialError
			require.ErrorAs(t, err, &credErr)
			assert.Equal(t, tt.want, credErr.Kind)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, strings.Contains(err.Error(), "stblobwesteurope"))
		})
	}
}

type staticToken struct{}

func (staticToken) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "test-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// delegationKeyServer answers GetUserDelegationKey with a fixed key and
// records the request it served.
type delegationKeyServer struct {
	requests []*http.Request
	bodies   []string
}

const delegationKeyXML = `<?xml version="1.0" encoding="utf-8"?>
<UserDelegationKey>
  <SignedOid>11111111-2222-3333-4444-555555555555</SignedOid>
  <SignedTid>66666666-7777-8888-9999-000000000000</SignedTid>
  <SignedStart>2026-10-18T09:59:00Z</SignedStart>
  <SignedExpiry>2026-10-18T10:15:00Z</SignedExpiry>
  <SignedService>b</SignedService>
  <SignedVersion>2023-11-03</SignedVersion>
  <Value>c2VjcmV0LWtleS1mb3ItdGVzdHM=</Value>
</UserDelegationKey>`

func (d *delegationKeyServer) Do(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)

	if req.URL.Query().Get("comp") != "userdelegationkey" {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/xml"}},
		Body:       io.NopCloser(strings.NewReader(delegationKeyXML)),
		Request:    req,
	}, nil
}

func TestDelegatedSigner_SignBlobURL(t *testing.T) {
	server := &delegationKeyServer{}
	blobs := storage.NewBlobService(testStorageConfig(), staticToken{}, storage.WithTransport(server))

	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	expiry := now.Add(15 * time.Minute)

	signer := NewDelegatedSigner(blobs)
	signer.now = func() time.Time { return now }

	signed, err := signer.SignBlobURL(context.Background(), "stblobwesteurope", "copytest", "test.txt", expiry, BlobPermissions{Read: true, Write: true})
	require.NoError(t, err)

	require.Len(t, server.requests, 1)
	req := server.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "stblobwesteurope.blob.core.windows.net", req.URL.Host)
	assert.Equal(t, "service", req.URL.Query().Get("restype"))
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
	assert.Contains(t, server.bodies[0], "<Start>2026-10-18T09:59:00Z</Start>")
	assert.Contains(t, server.bodies[0], "<Expiry>2026-10-18T10:15:00Z</Expiry>")

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "stblobwesteurope.blob.core.windows.net", u.Host)
	assert.Equal(t, "/copytest/test.txt", u.Path)

	q := u.Query()
	assert.Equal(t, "b", q.Get("sr"))
	assert.Equal(t, "rw", q.Get("sp"))
	assert.Equal(t, "https", q.Get("spr"))
	assert.Equal(t, "2026-10-18T10:15:00Z", q.Get("se"))
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", q.Get("skoid"))
	assert.Equal(t, "66666666-7777-8888-9999-000000000000", q.Get("sktid"))
	assert.NotEmpty(t, q.Get("sig"))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "authorization", KindAuthorization.String())
	assert.Equal(t, "not found", KindNotFound.String())
	assert.Equal(t, "invalid credential", KindInvalidCredential.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
