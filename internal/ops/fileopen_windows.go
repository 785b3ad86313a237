//go:build windows

package ops

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/hpungsan/smartqr/internal/errors"
)

// openNoFollow falls back to os.OpenFile; there is no O_NOFOLLOW on Windows,
// so the Lstat checks in ValidatePath are the only symlink guard.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil && stderrors.Is(err, fs.ErrNotExist) && flag&os.O_CREATE == 0 {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
