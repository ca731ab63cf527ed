package sync

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/spf13/afero"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// HashFile returns the md5 hash of the file at the given path, hex encoded
// to match the content hash the drive reports for file objects.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func hashBytes(contents []byte) string {
	sum := md5.Sum(contents)
	return hex.EncodeToString(sum[:])
}
