package filex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

func TestResolveUnderRoot_PlainPath(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveUnderRoot(root, "chats/chat_1/7/0.chunk")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "chats", "chat_1", "7", "0.chunk"), got)
}

func TestResolveUnderRoot_StripsTraversal(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveUnderRoot(root, "../../etc/passwd")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, root+string(filepath.Separator)),
		"resolved path must stay under root: %s", got)
	require.Equal(t, filepath.Join(root, "etc", "passwd"), got)
}

func TestResolveUnderRoot_RejectsAbsolute(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveUnderRoot(root, string(filepath.Separator)+"etc/passwd")
	require.True(t, errors.Is(err, common.ErrInvalidPath))
}

func TestResolveUnderRoot_RejectsEmpty(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"", ".", "..", "../.."} {
		_, err := ResolveUnderRoot(root, rel)
		require.True(t, errors.Is(err, common.ErrInvalidPath), "input %q", rel)
	}
}

func TestEnsureSubDir(t *testing.T) {
	root := t.TempDir()
	dir, err := EnsureSubDir(root, "chats")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.True(t, Exists(dir))
	require.False(t, Exists(filepath.Join(root, "nope")))
}
