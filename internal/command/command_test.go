package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/shared/types"
)

func testCommand() *Command {
	return &Command{
		Name:        "drill",
		Description: "exercise flag parsing",
		HelpText:    "drill [-r] [-f] [--depth N] [--] args...",
		Flags: []FlagDef{
			{Name: "recursive", Short: "-r", Long: "--recursive"},
			{Name: "force", Short: "-f", Long: "--force"},
			{Name: "depth", Short: "-d", Long: "--depth", TakesValue: true},
		},
		Args: AnyArgs(),
	}
}

func TestValidateFlags(t *testing.T) {
	cmd := testCommand()

	flags, rest, err := cmd.Validate([]string{"-r", "a", "--force", "b"})
	require.NoError(t, err)
	assert.True(t, flags.Bool("recursive"))
	assert.True(t, flags.Bool("force"))
	assert.False(t, flags.Bool("depth"))
	assert.Equal(t, []string{"a", "b"}, rest)
}

func TestValidateCombinedShorts(t *testing.T) {
	cmd := testCommand()
	flags, rest, err := cmd.Validate([]string{"-rf", "x"})
	require.NoError(t, err)
	assert.True(t, flags.Bool("recursive"))
	assert.True(t, flags.Bool("force"))
	assert.Equal(t, []string{"x"}, rest)
}

func TestValidateValueFlags(t *testing.T) {
	cmd := testCommand()

	flags, _, err := cmd.Validate([]string{"--depth", "3"})
	require.NoError(t, err)
	v, ok := flags.Value("depth")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	flags, _, err = cmd.Validate([]string{"--depth=5"})
	require.NoError(t, err)
	assert.Equal(t, "5", flags.ValueOr("depth", "0"))

	_, _, err = cmd.Validate([]string{"--depth"})
	assert.Equal(t, types.KindInvalidFlag, types.KindOf(err))
}

func TestValidateTerminator(t *testing.T) {
	cmd := testCommand()
	flags, rest, err := cmd.Validate([]string{"-r", "--", "-f", "--depth"})
	require.NoError(t, err)
	assert.True(t, flags.Bool("recursive"))
	assert.False(t, flags.Bool("force"))
	assert.Equal(t, []string{"-f", "--depth"}, rest)
}

func TestValidateUnknownFlag(t *testing.T) {
	cmd := testCommand()
	_, _, err := cmd.Validate([]string{"-z"})
	assert.Equal(t, types.KindInvalidFlag, types.KindOf(err))
	_, _, err = cmd.Validate([]string{"--bogus"})
	assert.Equal(t, types.KindInvalidFlag, types.KindOf(err))
}

func TestValidateNegativeNumbersArePositional(t *testing.T) {
	cmd := testCommand()
	_, rest, err := cmd.Validate([]string{"-5", "file"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-5", "file"}, rest)
}

func TestValidateArgCounts(t *testing.T) {
	cmd := testCommand()

	cmd.Args = ExactArgs(1)
	_, _, err := cmd.Validate([]string{"a", "b"})
	require.Equal(t, types.KindBadArgCount, types.KindOf(err))
	ke := err.(*types.KernelError)
	assert.Contains(t, ke.Suggestion, "usage:")

	cmd.Args = MinArgs(2)
	_, _, err = cmd.Validate([]string{"a"})
	assert.Equal(t, types.KindBadArgCount, types.KindOf(err))

	cmd.Args = RangeArgs(1, 2)
	_, _, err = cmd.Validate(nil)
	assert.Equal(t, types.KindBadArgCount, types.KindOf(err))
	_, _, err = cmd.Validate([]string{"a", "b"})
	assert.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "alpha", Description: "first"})
	r.Register(&Command{Name: "beta", Description: "second"})

	_, ok := r.Get("alpha")
	assert.True(t, ok)
	_, ok = r.Get("gamma")
	assert.False(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())

	assert.Panics(t, func() { r.Register(&Command{Name: "alpha"}) })

	manifest, err := r.Manifest()
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `"alpha"`)

	assert.True(t, r.Unregister("beta"))
	assert.False(t, r.Unregister("beta"))
	assert.Equal(t, []string{"alpha"}, r.Names())
}

func TestManifestIsDeterministic(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid", "beta", "omega"} {
		r.Register(&Command{Name: name, Description: name + " does things"})
	}

	first, err := r.Manifest()
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(first), `"alpha"`), strings.Index(string(first), `"zeta"`))
	for i := 0; i < 5; i++ {
		again, err := r.Manifest()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
