package namemgr_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/namemgr"
)

const (
	testPrefix = "n_"
	testSuffix = ".v"
)

func TestNewName_SmallestFirst(t *testing.T) {
	t.Parallel()

	mgr := namemgr.New(testPrefix, testSuffix)

	name, err := mgr.NewName(false)
	require.NoError(t, err)
	assert.Equal(t, "n_0.v", name)

	// Not registered, so the same name comes back.
	name, err = mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "n_0.v", name)

	name, err = mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "n_1.v", name)
	assert.Equal(t, itvl.ID(1), mgr.LastNum())
}

func TestAdd_SkipsRegisteredNames(t *testing.T) {
	t.Parallel()

	mgr := namemgr.New(testPrefix, testSuffix)

	for _, name := range []string{"n_0.v", "n_1.v", "n_3.v"} {
		ok, err := mgr.Add(name)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	name, err := mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "n_2.v", name)

	name, err = mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "n_4.v", name)

	_, err = mgr.Add("n_3.v")
	require.ErrorIs(t, err, itvl.ErrNotAvailable)
}

func TestAdd_IgnoresForeignNames(t *testing.T) {
	t.Parallel()

	mgr := namemgr.New(testPrefix, testSuffix)

	for _, name := range []string{"", "n_.v", "x_1.v", "n_1.x", "n_1a.v", "n_-1.v", "n_99999999999.v"} {
		ok, err := mgr.Add(name)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	name, err := mgr.NewName(false)
	require.NoError(t, err)
	assert.Equal(t, "n_0.v", name)
}

func TestErase_ReleasesName(t *testing.T) {
	t.Parallel()

	mgr := namemgr.New(testPrefix, testSuffix)

	for range 3 {
		_, err := mgr.NewName(true)
		require.NoError(t, err)
	}

	ok, err := mgr.Erase("n_1.v")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mgr.Registered("n_1.v"))
	assert.True(t, mgr.Registered("n_2.v"))

	name, err := mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "n_1.v", name)

	_, err = mgr.Erase("n_7.v")
	require.ErrorIs(t, err, itvl.ErrAlreadyAvailable)

	ok, err = mgr.Erase("other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChange_DropsRegistrations(t *testing.T) {
	t.Parallel()

	mgr := namemgr.New(testPrefix, testSuffix)
	_, err := mgr.Add("n_0.v")
	require.NoError(t, err)

	mgr.Change("tmp", "")
	assert.Equal(t, "tmp", mgr.Prefix())
	assert.Empty(t, mgr.Suffix())

	name, err := mgr.NewName(true)
	require.NoError(t, err)
	assert.Equal(t, "tmp0", name)

	mgr.Clear()
	assert.False(t, mgr.Registered("tmp0"))
}

func TestNewName_Exhausted(t *testing.T) {
	t.Parallel()

	mgr := namemgr.NewWithLimit("id", "", 1)

	for range 2 {
		_, err := mgr.NewName(true)
		require.NoError(t, err)
	}

	_, err := mgr.NewName(true)
	require.ErrorIs(t, err, namemgr.ErrExhausted)

	_, ok := mgr.Parse("id2")
	assert.False(t, ok, "numbers above the limit are not ours")
}

func TestPrint(t *testing.T) {
	t.Parallel()

	mgr := namemgr.NewWithLimit(testPrefix, testSuffix, 10)
	_, err := mgr.Add("n_4.v")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, mgr.Print(&buf))
	assert.Equal(t, "Prefix: 'n_'\nSuffix: '.v'\n 0 - 3\n 5 - 10\n", buf.String())
}
