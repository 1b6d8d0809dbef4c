package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/share"
	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
)

// Entry is a single item of a share directory listing.
type Entry struct {
	Name        string
	IsDirectory bool
}

// ShareReader lists directories of one file share.
type ShareReader interface {
	// ListEntries returns the direct children of dir, "" being the share root.
	ListEntries(ctx context.Context, dir string) ([]Entry, error)
}

// FileTarget identifies a file inside a share together with the key of its account.
type FileTarget struct {
	Account string
	Key     string
	Share   string
	Path    string
}

// FileService talks to the file endpoints of the destination accounts.
type FileService struct {
	cfg     config.StorageConfig
	options azcore.ClientOptions
	logger  *logrus.Entry
}

// NewFileService creates an Azure Files provider.
func NewFileService(cfg config.StorageConfig, opts ...Option) *FileService {
	return &FileService{
		cfg:     cfg,
		options: buildOptions(cfg.RequestTimeout, opts),
		logger:  logrus.WithField("component", "file-service"),
	}
}

// ShareURL returns the unsigned URL of a share.
func (s *FileService) ShareURL(account, shareName string) string {
	return runtime.JoinPaths(s.cfg.FileServiceURL(account), shareName)
}

// FileURL returns the unsigned URL of a file inside a share.
func (s *FileService) FileURL(account, shareName, filePath string) string {
	return runtime.JoinPaths(s.cfg.FileServiceURL(account), shareName, filePath)
}

// OpenShare returns a reader for shareName authenticated with the account key.
func (s *FileService) OpenShare(account, key, shareName string) (ShareReader, error) {
	cred, err := file.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("invalid shared key for %s: %w", account, err)
	}

	client, err := share.NewClientWithSharedKeyCredential(s.ShareURL(account, shareName), cred, &share.ClientOptions{
		ClientOptions: s.options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create share client for %s/%s: %w", account, shareName, err)
	}

	return &azureShareReader{client: client}, nil
}

type azureShareReader struct {
	client *share.Client
}

func (r *azureShareReader) ListEntries(ctx context.Context, dir string) ([]Entry, error) {
	var dirClient *directory.Client
	if dir == "" {
		dirClient = r.client.NewRootDirectoryClient()
	} else {
		dirClient = r.client.NewDirectoryClient(dir)
	}

	var entries []Entry
	pager := dirClient.NewListFilesAndDirectoriesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapError("list files and directories", err)
		}
		if page.Segment == nil {
			continue
		}
		for _, d := range page.Segment.Directories {
			if d != nil && d.Name != nil {
				entries = append(entries, Entry{Name: *d.Name, IsDirectory: true})
			}
		}
		for _, f := range page.Segment.Files {
			if f != nil && f.Name != nil {
				entries = append(entries, Entry{Name: *f.Name})
			}
		}
	}

	SortEntries(entries)
	return entries, nil
}

// SortEntries orders entries by name, the order the service lists them in
// before they are split into directories and files.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// JoinEntryPath joins a listing directory and an entry name into a share path.
func JoinEntryPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// StartCopy starts a server side copy of sourceURL into the file addressed by
// the signed destinationURL and returns the service's copy status.
func (s *FileService) StartCopy(ctx context.Context, destinationURL, sourceURL string) (string, error) {
	client, err := file.NewClientWithNoCredential(destinationURL, &file.ClientOptions{
		ClientOptions: s.options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create file client: %w", err)
	}

	resp, err := client.StartCopyFromURL(ctx, sourceURL, nil)
	if err != nil {
		return "", wrapError("start copy", err)
	}
	if resp.CopyStatus == nil {
		return "", nil
	}
	return string(*resp.CopyStatus), nil
}

// CopyStatus reads the copy status of target.
func (s *FileService) CopyStatus(ctx context.Context, target FileTarget) (string, error) {
	cred, err := file.NewSharedKeyCredential(target.Account, target.Key)
	if err != nil {
		return "", fmt.Errorf("invalid shared key for %s: %w", target.Account, err)
	}

	client, err := file.NewClientWithSharedKeyCredential(
		s.FileURL(target.Account, target.Share, strings.TrimPrefix(target.Path, "/")),
		cred,
		&file.ClientOptions{ClientOptions: s.options},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create file client: %w", err)
	}

	props, err := client.GetProperties(ctx, nil)
	if err != nil {
		return "", wrapError("get file properties", err)
	}
	if props.CopyStatus == nil {
		return "", nil
	}
	return string(*props.CopyStatus), nil
}
