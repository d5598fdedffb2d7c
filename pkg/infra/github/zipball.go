package github

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

// DefaultMaxExtractSize caps the total bytes written when extracting an archive
const DefaultMaxExtractSize int64 = 1 << 30

// ErrArchiveTooLarge is returned when extraction would exceed the size cap
var ErrArchiveTooLarge = goerr.New("archive exceeds extraction limit")

// ZipballSource checks out source by downloading the commit archive
type ZipballSource struct {
	client  interfaces.GitHubClient
	maxSize int64
}

// ZipballOption configures ZipballSource
type ZipballOption func(*ZipballSource)

// WithMaxExtractSize overrides DefaultMaxExtractSize
func WithMaxExtractSize(n int64) ZipballOption {
	return func(s *ZipballSource) {
		s.maxSize = n
	}
}

// NewZipballSource creates a SourceFetcher backed by the GitHub archive API
func NewZipballSource(client interfaces.GitHubClient, opts ...ZipballOption) *ZipballSource {
	s := &ZipballSource{client: client, maxSize: DefaultMaxExtractSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads the archive of the triggering commit and extracts it into dir.
// GitHub wraps the tree in a single "<owner>-<repo>-<sha>/" directory, which is stripped.
func (s *ZipballSource) Fetch(ctx context.Context, trigger *model.Trigger, dir string) (*model.Checkout, error) {
	logger := ctxlog.From(ctx)

	zipData, err := s.client.DownloadZipball(ctx, trigger.Owner, trigger.Repo, trigger.CommitSHA)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download zipball",
			goerr.V("repo", trigger.FullName()),
			goerr.V("commit_sha", trigger.CommitSHA),
		)
	}

	logger.Info("Downloaded zipball",
		"size_bytes", len(zipData),
		"repo", trigger.FullName(),
	)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, goerr.Wrap(err, "failed to create source directory", goerr.V("dir", dir))
	}

	files, err := extractZip(zipData, dir, s.maxSize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract zip", goerr.V("repo", trigger.FullName()))
	}

	return &model.Checkout{
		Dir:       dir,
		CommitSHA: trigger.CommitSHA,
		Files:     files,
	}, nil
}

// extractZip extracts ZIP data into destDir and returns the number of regular
// files. At most limit bytes are written in total.
func extractZip(zipData []byte, destDir string, limit int64) (int, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create zip reader")
	}

	// reject on declared sizes before writing anything
	var declared uint64
	for _, file := range zipReader.File {
		declared += file.UncompressedSize64
		if declared > uint64(limit) {
			return 0, goerr.Wrap(ErrArchiveTooLarge, "declared size over limit",
				goerr.V("limit", limit),
				goerr.V("file", file.Name),
			)
		}
	}

	remaining := limit
	var count int
	for _, file := range zipReader.File {
		name := stripTopDir(file.Name)
		if name == "" {
			continue
		}
		written, err := extractFile(file, name, destDir, remaining)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to extract file", goerr.V("file", file.Name))
		}
		remaining -= written
		if !file.FileInfo().IsDir() {
			count++
		}
	}

	return count, nil
}

func stripTopDir(name string) string {
	_, rest, found := strings.Cut(name, "/")
	if !found {
		return ""
	}
	return rest
}

// extractFile writes a single entry under destDir, copying at most remaining bytes
func extractFile(file *zip.File, name, destDir string, remaining int64) (int64, error) {
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return 0, goerr.New("invalid file path detected", goerr.V("file", file.Name), goerr.V("dest", destPath))
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0755); err != nil {
			return 0, goerr.Wrap(err, "failed to create directory", goerr.V("path", destPath))
		}
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, goerr.Wrap(err, "failed to create parent directories", goerr.V("path", filepath.Dir(destPath)))
	}

	rc, err := file.Open()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open file in zip", goerr.V("file", file.Name))
	}
	defer rc.Close()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.FileInfo().Mode().Perm()|0600)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create destination file", goerr.V("path", destPath))
	}
	defer destFile.Close()

	// one extra byte tells an entry that hits the cap from one that exceeds it
	written, err := io.Copy(destFile, io.LimitReader(rc, remaining+1))
	if err != nil {
		return written, goerr.Wrap(err, "failed to copy file content", goerr.V("path", destPath))
	}
	if written > remaining {
		return written, goerr.Wrap(ErrArchiveTooLarge, "extracted size over limit", goerr.V("path", destPath))
	}

	return written, nil
}
