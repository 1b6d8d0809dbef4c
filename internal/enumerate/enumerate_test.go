package enumerate

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/secrets"
	"github.com/einyx/blob-copy-service/internal/storage"
)

type fakeBlobLister struct {
	containers map[string][]string
	blobs      map[string][]string
	failOn     string
	err        error
}

func (f *fakeBlobLister) ListContainers(_ context.Context, account string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if f.failOn == account {
			yield("", f.err)
			return
		}
		for _, c := range f.containers[account] {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (f *fakeBlobLister) ListBlobs(_ context.Context, account, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		key := account + "/" + container
		for _, b := range f.blobs[key] {
			if !yield(b, nil) {
				return
			}
		}
		if f.failOn == key {
			yield("", f.err)
		}
	}
}

type fakeShare struct {
	tree   map[string][]storage.Entry
	failOn string
	err    error
	reads  []string
}

func (s *fakeShare) ListEntries(_ context.Context, dir string) ([]storage.Entry, error) {
	s.reads = append(s.reads, dir)
	if dir == s.failOn {
		return nil, s.err
	}
	return s.tree[dir], nil
}

type fakeShareOpener struct {
	shares map[string]*fakeShare
	opened []string
	keys   []string
}

func (o *fakeShareOpener) OpenShare(account, key, share string) (storage.ShareReader, error) {
	o.opened = append(o.opened, account+"/"+share)
	o.keys = append(o.keys, key)
	s, ok := o.shares[account]
	if !ok {
		return nil, errors.New("no such share")
	}
	return s, nil
}

func sampleTree() *fakeShare {
	return &fakeShare{tree: map[string][]storage.Entry{
		"":    {{Name: "a", IsDirectory: true}},
		"a":   {{Name: "b", IsDirectory: true}, {Name: "file1"}},
		"a/b": {{Name: "file2"}},
	}}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Locations: config.LocationsConfig{Primary: "westeurope", Secondary: "swedencentral"},
		Storage:   config.StorageConfig{BlobAccountPrefix: "stblob", FileShareAccountPrefix: "stfile"},
		Secrets:   config.SecretsConfig{Provider: config.SecretProviderMemory},
	}
	cfg.SetDefaults()
	return cfg
}

func indexOf(t *testing.T, list []string, s string) int {
	t.Helper()
	for i, v := range list {
		if v == s {
			return i
		}
	}
	t.Fatalf("%q not found in %v", s, list)
	return -1
}

func TestListFilesRecursive_DepthFirstOrder(t *testing.T) {
	share := sampleTree()
	opener := &fakeShareOpener{shares: map[string]*fakeShare{"stfilewesteurope": share}}
	e := New(testConfig(), &fakeBlobLister{}, opener, secrets.NewMemoryStore(nil), nil)

	paths, err := e.ListFilesRecursive(context.Background(), "stfilewesteurope", "key", "copytest", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/file2", "a/b", "a/file1", "a"}, paths)
	assert.Less(t, indexOf(t, paths, "a/b/file2"), indexOf(t, paths, "a/b"))
	assert.Less(t, indexOf(t, paths, "a/b"), indexOf(t, paths, "a"))
	assert.Less(t, indexOf(t, paths, "a/file1"), indexOf(t, paths, "a"))

	assert.Equal(t, []string{"stfilewesteurope/copytest"}, opener.opened, "one reader per walk")
	assert.Equal(t, []string{"", "a", "a/b"}, share.reads)
}

func TestListFilesRecursive_FromSubdirectory(t *testing.T) {
	opener := &fakeShareOpener{shares: map[string]*fakeShare{"acct": sampleTree()}}
	e := New(testConfig(), &fakeBlobLister{}, opener, secrets.NewMemoryStore(nil), nil)

	paths, err := e.ListFilesRecursive(context.Background(), "acct", "key", "copytest", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/file2", "a/b", "a/file1"}, paths)
}

func TestListFilesRecursive_ErrorDiscardsPartialResults(t *testing.T) {
	share := sampleTree()
	share.failOn = "a/b"
	share.err = &storage.ProviderError{Op: "list files and directories", StatusCode: 403}
	opener := &fakeShareOpener{shares: map[string]*fakeShare{"acct": share}}
	e := New(testConfig(), &fakeBlobLister{}, opener, secrets.NewMemoryStore(nil), nil)

	paths, err := e.ListFilesRecursive(context.Background(), "acct", "key", "copytest", "")
	require.Error(t, err)
	assert.Nil(t, paths)

	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	assert.Equal(t, "acct", enumErr.Account)
	assert.Equal(t, "copytest", enumErr.Container)
	assert.Equal(t, "a/b", enumErr.Path)
	assert.ErrorIs(t, err, share.err)
}

func TestListFilesRecursive_OpenFailure(t *testing.T) {
	e := New(testConfig(), &fakeBlobLister{}, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	_, err := e.ListFilesRecursive(context.Background(), "missing", "key", "copytest", "")
	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	assert.Equal(t, "missing", enumErr.Account)
}

func TestListFilesRecursive_Cancelled(t *testing.T) {
	opener := &fakeShareOpener{shares: map[string]*fakeShare{"acct": sampleTree()}}
	e := New(testConfig(), &fakeBlobLister{}, opener, secrets.NewMemoryStore(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ListFilesRecursive(ctx, "acct", "key", "copytest", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListContainersAndObjects(t *testing.T) {
	lister := &fakeBlobLister{
		containers: map[string][]string{"acct": {"copytest", "logs"}},
		blobs:      map[string][]string{"acct/copytest": {"test.txt", "other.txt"}},
	}
	e := New(testConfig(), lister, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	var containers []string
	for name, err := range e.ListContainers(context.Background(), "acct") {
		require.NoError(t, err)
		containers = append(containers, name)
	}
	assert.Equal(t, []string{"copytest", "logs"}, containers)

	// Restartable: a second pass yields the same names.
	var again []string
	for name, err := range e.ListContainers(context.Background(), "acct") {
		require.NoError(t, err)
		again = append(again, name)
	}
	assert.Equal(t, containers, again)

	var blobs []string
	for name, err := range e.ListObjects(context.Background(), "acct", "copytest") {
		require.NoError(t, err)
		blobs = append(blobs, name)
	}
	assert.Equal(t, []string{"test.txt", "other.txt"}, blobs)
}

func TestListObjects_ErrorEndsSequence(t *testing.T) {
	boom := errors.New("throttled")
	lister := &fakeBlobLister{
		blobs:  map[string][]string{"acct/copytest": {"one"}},
		failOn: "acct/copytest",
		err:    boom,
	}
	e := New(testConfig(), lister, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	var names []string
	var gotErr error
	for name, err := range e.ListObjects(context.Background(), "acct", "copytest") {
		if err != nil {
			gotErr = err
			break
		}
		names = append(names, name)
	}

	assert.Equal(t, []string{"one"}, names)
	var enumErr *EnumerationError
	require.ErrorAs(t, gotErr, &enumErr)
	assert.Equal(t, "copytest", enumErr.Container)
	assert.ErrorIs(t, gotErr, boom)
}

func TestListBlobAccounts(t *testing.T) {
	lister := &fakeBlobLister{
		containers: map[string][]string{
			"stblobwesteurope":    {"copytest"},
			"stblobswedencentral": {"copytest", "empty"},
		},
		blobs: map[string][]string{
			"stblobwesteurope/copytest":    {"test.txt"},
			"stblobswedencentral/copytest": {"test.txt"},
		},
	}
	e := New(testConfig(), lister, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	contents, err := e.ListBlobAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, contents, 2)

	assert.Equal(t, "stblobwesteurope", contents[0].StorageAccountName)
	assert.Equal(t, "stblobswedencentral", contents[1].StorageAccountName)
	require.Len(t, contents[1].BlobContainers, 2)
	assert.Equal(t, "empty", contents[1].BlobContainers[1].Name)
	assert.Empty(t, contents[1].BlobContainers[1].Blobs)
	assert.NotNil(t, contents[1].BlobContainers[1].Blobs)
	assert.Nil(t, contents[0].FileShares)
}

func TestListBlobAccounts_Failure(t *testing.T) {
	lister := &fakeBlobLister{failOn: "stblobswedencentral", err: errors.New("forbidden")}
	e := New(testConfig(), lister, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	contents, err := e.ListBlobAccounts(context.Background())
	assert.Nil(t, contents)

	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	assert.Equal(t, "stblobswedencentral", enumErr.Account)
}

func TestListFileShareAccounts(t *testing.T) {
	store := secrets.NewMemoryStore(map[string]string{
		"stfilewesteuropeStorageAccountKey":    "key-we",
		"stfileswedencentralStorageAccountKey": "key-sc",
	})
	opener := &fakeShareOpener{shares: map[string]*fakeShare{
		"stfilewesteurope":    sampleTree(),
		"stfileswedencentral": {tree: map[string][]storage.Entry{}},
	}}
	e := New(testConfig(), &fakeBlobLister{}, opener, store, nil)

	contents, err := e.ListFileShareAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, contents, 2)

	assert.Equal(t, []string{"key-we", "key-sc"}, opener.keys)
	assert.Equal(t, "stfilewesteurope", contents[0].StorageAccountName)
	require.Len(t, contents[0].FileShares, 1)
	assert.Equal(t, "copytest", contents[0].FileShares[0].Name)
	assert.Equal(t, []string{"a/b/file2", "a/b", "a/file1", "a"}, contents[0].FileShares[0].Files)
	assert.Equal(t, []string{}, contents[1].FileShares[0].Files)
}

func TestListFileShareAccounts_SecretFailure(t *testing.T) {
	opener := &fakeShareOpener{shares: map[string]*fakeShare{"stfilewesteurope": sampleTree()}}
	e := New(testConfig(), &fakeBlobLister{}, opener, secrets.NewMemoryStore(nil), nil)

	_, err := e.ListFileShareAccounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
	assert.Contains(t, err.Error(), "stfilewesteuropeStorageAccountKey")
	assert.Empty(t, opener.opened)
}

func TestListAll_BlobsThenFiles(t *testing.T) {
	lister := &fakeBlobLister{containers: map[string][]string{}}
	store := secrets.NewMemoryStore(map[string]string{
		"stfilewesteuropeStorageAccountKey":    "k1",
		"stfileswedencentralStorageAccountKey": "k2",
	})
	opener := &fakeShareOpener{shares: map[string]*fakeShare{
		"stfilewesteurope":    sampleTree(),
		"stfileswedencentral": sampleTree(),
	}}
	e := New(testConfig(), lister, opener, store, nil)

	contents, err := e.ListAll(context.Background())
	require.NoError(t, err)

	var names []string
	for _, c := range contents {
		names = append(names, c.StorageAccountName)
	}
	assert.Equal(t, []string{"stblobwesteurope", "stblobswedencentral", "stfilewesteurope", "stfileswedencentral"}, names)
}

func TestListAll_MissingPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.BlobAccountPrefix = ""
	e := New(cfg, &fakeBlobLister{}, &fakeShareOpener{}, secrets.NewMemoryStore(nil), nil)

	_, err := e.ListAll(context.Background())
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
