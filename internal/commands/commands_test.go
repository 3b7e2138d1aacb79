package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/config"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shell/executor"
	"github.com/oopisos/kernel/internal/storage"
	"github.com/oopisos/kernel/internal/vfs"
)

// testShell boots a full kernel with every builtin installed and drives it
// through the executor, the way a terminal would.
type testShell struct {
	exec  *executor.Executor
	sess  *session.Session
	fs    *vfs.FS
	idm   *identity.Manager
	mgr   *session.Manager
	store storage.Store
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()
	store := storage.NewMemory()
	log := logging.NewNop()
	cfg := config.Default()
	fs := vfs.New(store, log, vfs.Options{})
	idm := identity.NewManager(store, fs, log, identity.Options{})
	mgr := session.NewManager(store, fs, idm, log, cfg)
	require.NoError(t, mgr.Boot(context.Background()))

	reg := command.NewRegistry()
	RegisterAll(reg)
	exec := executor.New(reg, fs, idm, mgr, log, cfg)
	sess := mgr.Open(context.Background(), session.DefaultUser)
	return &testShell{exec: exec, sess: sess, fs: fs, idm: idm, mgr: mgr, store: store}
}

func (s *testShell) run(t *testing.T, line string) executor.Outcome {
	t.Helper()
	return s.exec.Execute(context.Background(), s.sess, nil, line)
}

func (s *testShell) runWith(t *testing.T, p command.Prompter, line string) executor.Outcome {
	t.Helper()
	return s.exec.Execute(context.Background(), s.sess, p, line)
}

// scriptedPrompter replays canned answers for prompts, in order.
type scriptedPrompter struct {
	answers  []string
	confirms []bool
}

func (p *scriptedPrompter) next() string {
	if len(p.answers) == 0 {
		return ""
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a
}

func (p *scriptedPrompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	return p.next(), nil
}

func (p *scriptedPrompter) ReadSecret(ctx context.Context, prompt string) (string, error) {
	return p.next(), nil
}

func (p *scriptedPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if len(p.confirms) == 0 {
		return false, nil
	}
	c := p.confirms[0]
	p.confirms = p.confirms[1:]
	return c, nil
}

func TestPwdAndCd(t *testing.T) {
	s := newTestShell(t)
	assert.Equal(t, "/home/Guest", s.run(t, "pwd").Output)

	out := s.run(t, "cd /tmp; pwd")
	assert.True(t, out.Success)
	assert.Equal(t, "/tmp", out.Output)

	out = s.run(t, "cd /etc/oopis.conf")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not a directory")
}

func TestMkdirTouchLs(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir -p docs/work; touch docs/note.txt").Success)

	out := s.run(t, "ls docs")
	assert.Equal(t, "note.txt\nwork", out.Output)

	out = s.run(t, "ls -l docs")
	assert.Contains(t, out.Output, "-rw-r--r-- Guest")
	assert.Contains(t, out.Output, "drwxr-xr-x Guest")

	// Dotfiles hide without -a.
	require.True(t, s.run(t, "touch docs/.hidden").Success)
	assert.NotContains(t, s.run(t, "ls docs").Output, ".hidden")
	assert.Contains(t, s.run(t, "ls -a docs").Output, ".hidden")
}

func TestLsReportsOperandAsTyped(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir docs; touch docs/a.txt").Success)

	// A bad operand is named as the user typed it; good operands still list.
	out := s.run(t, "ls missing docs")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "ls: cannot access 'missing': no such file or directory")
	assert.Contains(t, out.Output, "docs:")
	assert.Contains(t, out.Output, "a.txt")

	// A failed stage feeds empty input downstream, so the count is zero and
	// the complaint still reaches stderr.
	out = s.run(t, "ls missing | wc -l")
	assert.True(t, out.Success)
	assert.Contains(t, out.Errors, "ls: cannot access 'missing': no such file or directory")
	assert.Equal(t, "0", strings.TrimSpace(out.Output))
}

func TestCatAndRedirection(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo hello > f.txt").Success)
	assert.Equal(t, "hello", s.run(t, "cat f.txt").Output)

	require.True(t, s.run(t, "echo world >> f.txt").Success)
	assert.Equal(t, "hello\nworld", s.run(t, "cat f.txt").Output)

	out := s.run(t, "cat -n f.txt")
	assert.Contains(t, out.Output, "1\thello")
	assert.Contains(t, out.Output, "2\tworld")
}

func TestRmAndRmdir(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir d; touch d/f").Success)

	out := s.run(t, "rm d")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "is a directory")

	out = s.run(t, "rmdir d")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not empty")

	assert.True(t, s.run(t, "rm -r d").Success)
	assert.False(t, s.run(t, "cat d/f").Success)

	// -f ignores missing paths.
	assert.False(t, s.run(t, "rm ghost").Success)
	assert.True(t, s.run(t, "rm -f ghost").Success)
}

func TestCpAndMv(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo data > src.txt; mkdir dest").Success)

	assert.True(t, s.run(t, "cp src.txt dest").Success)
	assert.Equal(t, "data", s.run(t, "cat dest/src.txt").Output)
	assert.Equal(t, "data", s.run(t, "cat src.txt").Output)

	assert.True(t, s.run(t, "mv src.txt moved.txt").Success)
	assert.False(t, s.run(t, "cat src.txt").Success)
	assert.Equal(t, "data", s.run(t, "cat moved.txt").Output)

	// Copying a directory requires -r.
	out := s.run(t, "cp dest copy")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "omitting directory")
	assert.True(t, s.run(t, "cp -r dest copy").Success)
	assert.Equal(t, "data", s.run(t, "cat copy/src.txt").Output)
}

func TestMvRefusesTypeConflict(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir d; touch f").Success)
	out := s.run(t, "mv f d/f; mkdir e; mv e /home/Guest/d/f")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "mv:")
}

func TestSymlinks(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo target > real.txt; ln -s real.txt link").Success)
	assert.Equal(t, "target", s.run(t, "cat link").Output)
	assert.Equal(t, "real.txt", s.run(t, "readlink link").Output)

	out := s.run(t, "readlink real.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not a symbolic link")

	out = s.run(t, "ln real.txt hard")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "hard links are not supported")
}

func TestChmodAndPermissions(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "useradd bob").Success)
	require.True(t, s.run(t, "echo secret > /tmp/s.txt; chmod 600 /tmp/s.txt").Success)

	require.True(t, s.run(t, "su bob").Success)
	out := s.run(t, "cat /tmp/s.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "permission denied")
	require.True(t, s.run(t, "logout").Success)

	assert.Equal(t, "secret", s.run(t, "cat /tmp/s.txt").Output)

	out = s.run(t, "chmod 999 /tmp/s.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "invalid mode")
}

func TestChownRootOnly(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "useradd bob; touch mine.txt").Success)

	out := s.run(t, "chown bob mine.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not permitted")

	require.True(t, s.run(t, "su root").Success)
	assert.True(t, s.run(t, "chown bob /home/Guest/mine.txt").Success)
	assert.True(t, s.run(t, "chgrp bob /home/Guest/mine.txt").Success)
	require.True(t, s.run(t, "logout").Success)

	out = s.run(t, "chown nobody mine.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "no such user")
}

func TestStatAndFile(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo hi > a.txt; ln -s a.txt l").Success)

	out := s.run(t, "stat a.txt")
	assert.Contains(t, out.Output, "File: /home/Guest/a.txt")
	assert.Contains(t, out.Output, "0644/-rw-r--r--")
	assert.Contains(t, out.Output, "Uid: Guest")

	assert.Contains(t, s.run(t, "stat l").Output, "symbolic link to a.txt")

	assert.Contains(t, s.run(t, "file /etc").Output, "/etc: directory")
	assert.Contains(t, s.run(t, "file l").Output, "symbolic link to a.txt")
	assert.Contains(t, s.run(t, "file a.txt").Output, "text/plain")

	require.True(t, s.run(t, "echo hi > run.sh").Success)
	assert.Contains(t, s.run(t, "file run.sh").Output, "oopis shell script")
}

func TestTreeAndDu(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir -p p/q; echo 12345 > p/q/f").Success)

	out := s.run(t, "tree p")
	assert.Contains(t, out.Output, "└── q")
	assert.Contains(t, out.Output, "1 directories, 1 files")

	out = s.run(t, "du -s p")
	assert.Contains(t, out.Output, "6\t/home/Guest/p")
}

func TestGrep(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, `printf 'alpha\nbeta\nALPHA\n' > g.txt`).Success)

	assert.Equal(t, "alpha", s.run(t, "grep alpha g.txt").Output)
	assert.Equal(t, "alpha\nALPHA", s.run(t, "grep -i alpha g.txt").Output)
	assert.Equal(t, "beta", s.run(t, "grep -i -v alpha g.txt").Output)
	assert.Equal(t, "2:beta", s.run(t, "grep -n beta g.txt").Output)
	assert.Equal(t, "2", s.run(t, "grep -c -i alpha g.txt").Output)

	// No match fails silently, driving || chains.
	out := s.run(t, "grep gamma g.txt || echo none")
	assert.Equal(t, "none", out.Output)
	assert.Empty(t, out.Errors)

	assert.Equal(t, "beta", s.run(t, "cat g.txt | grep beta").Output)
}

func TestWcHeadTail(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, `printf 'one\ntwo\nthree\nfour\n' > w.txt`).Success)

	assert.Contains(t, s.run(t, "wc -l w.txt").Output, "4")
	assert.Contains(t, s.run(t, "cat w.txt | wc -w").Output, "4")

	assert.Equal(t, "one\ntwo", s.run(t, "head -n 2 w.txt").Output)
	assert.Equal(t, "three\nfour", s.run(t, "tail -n 2 w.txt").Output)
	assert.Equal(t, "one", s.run(t, "cat w.txt | head -n 1").Output)
}

func TestSortAndUniq(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, `printf 'b\na\nc\na\n' > s.txt`).Success)

	assert.Equal(t, "a\na\nb\nc", s.run(t, "sort s.txt").Output)
	assert.Equal(t, "c\nb\na\na", s.run(t, "sort -r s.txt").Output)
	assert.Equal(t, "a\nb\nc", s.run(t, "sort -u s.txt").Output)

	assert.Equal(t, "a", s.run(t, "sort s.txt | uniq -d").Output)
	assert.Contains(t, s.run(t, "sort s.txt | uniq -c").Output, "2 a")

	require.True(t, s.run(t, `printf '10\n9\n1\n' > n.txt`).Success)
	assert.Equal(t, "1\n9\n10", s.run(t, "sort -n n.txt").Output)
}

func TestDiff(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, `printf 'a\nb\nc\n' > x.txt`).Success)
	require.True(t, s.run(t, `printf 'a\nB\nc\n' > y.txt`).Success)

	out := s.run(t, "diff x.txt y.txt")
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "2c2")
	assert.Contains(t, out.Output, "< b")
	assert.Contains(t, out.Output, "> B")

	out = s.run(t, "diff x.txt x.txt")
	assert.True(t, out.Success)
	assert.Empty(t, out.Output)
}

func TestBase64(t *testing.T) {
	s := newTestShell(t)
	out := s.run(t, "echo hello | base64")
	assert.Equal(t, "aGVsbG8=", out.Output)
	assert.Equal(t, "hello", s.run(t, "echo hello | base64 | base64 -d").Output)

	out = s.run(t, "echo '!!!' | base64 -d")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "invalid base64")
}

func TestXargs(t *testing.T) {
	s := newTestShell(t)
	assert.Equal(t, "a b c", s.run(t, `printf 'b c' | xargs echo a`).Output)
}

func TestFind(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "mkdir -p proj/src; touch proj/src/main.go proj/readme.md").Success)

	out := s.run(t, `find proj -name '*.go'`)
	assert.Equal(t, "/home/Guest/proj/src/main.go", out.Output)

	out = s.run(t, "find proj -type d")
	assert.Contains(t, out.Output, "/home/Guest/proj/src")
}

func TestEchoAndPrintf(t *testing.T) {
	s := newTestShell(t)
	assert.Equal(t, "a b", s.run(t, "echo a b").Output)
	assert.Equal(t, "a\tb", s.run(t, `echo -e 'a\tb'`).Output)

	assert.Equal(t, "x-5", s.run(t, `printf '%s-%d' x 5`).Output)
	assert.Equal(t, "a,b,", s.run(t, `printf '%s,' a b`).Output)

	out := s.run(t, `printf '%d' notanumber`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "expected a number")
}

func TestEnvSetUnset(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "set GREETING=hi").Success)
	assert.Equal(t, "hi there", s.run(t, "echo $GREETING there").Output)
	assert.Contains(t, s.run(t, "env").Output, "GREETING=hi")

	require.True(t, s.run(t, "unset GREETING").Success)
	assert.Equal(t, "there", s.run(t, "echo $GREETING there").Output)

	out := s.run(t, "set 1BAD=x")
	assert.False(t, out.Success)

	require.True(t, s.run(t, "export MODE=fast").Success)
	assert.Equal(t, "fast", s.run(t, "echo $MODE").Output)
}

func TestAliases(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "alias greet='echo hello'").Success)
	assert.Equal(t, "hello world", s.run(t, "greet world").Output)
	assert.Contains(t, s.run(t, "alias").Output, "alias greet='echo hello'")

	require.True(t, s.run(t, "unalias greet").Success)
	assert.False(t, s.run(t, "greet").Success)
	assert.False(t, s.run(t, "unalias greet").Success)
}

func TestHistory(t *testing.T) {
	s := newTestShell(t)
	s.run(t, "pwd")
	s.run(t, "echo one")
	out := s.run(t, "history")
	assert.Contains(t, out.Output, "1  pwd")
	assert.Contains(t, out.Output, "2  echo one")

	require.True(t, s.run(t, "history -c").Success)
	out = s.run(t, "history")
	assert.NotContains(t, out.Output, "pwd")
}

func TestIdentityStack(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "useradd alice").Success)
	assert.Equal(t, "Guest", s.run(t, "whoami").Output)

	require.True(t, s.run(t, "su alice").Success)
	assert.Equal(t, "alice", s.run(t, "whoami").Output)
	assert.Equal(t, "/home/alice", s.run(t, "pwd").Output)

	require.True(t, s.run(t, "logout").Success)
	assert.Equal(t, "Guest", s.run(t, "whoami").Output)

	out := s.run(t, "logout")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not in a nested session")
}

func TestPasswordedAccounts(t *testing.T) {
	s := newTestShell(t)
	p := &scriptedPrompter{answers: []string{"hunter2pass", "hunter2pass"}}
	require.True(t, s.runWith(t, p, "useradd carol").Success)

	out := s.run(t, "su carol wrongpass")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "authentication failed")

	require.True(t, s.run(t, "su carol hunter2pass").Success)
	assert.Equal(t, "carol", s.run(t, "whoami").Output)
}

func TestGroupCommands(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "useradd dave; groupadd devs").Success)
	require.True(t, s.run(t, "usermod -a -G devs dave").Success)
	assert.Equal(t, "dave devs", s.run(t, "groups dave").Output)

	require.True(t, s.run(t, "usermod -d -G devs dave").Success)
	assert.Equal(t, "dave", s.run(t, "groups dave").Output)

	out := s.run(t, "groupdel dave")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "primary group")
	assert.True(t, s.run(t, "groupdel devs").Success)
}

func TestSudo(t *testing.T) {
	s := newTestShell(t)
	out := s.run(t, "sudo whoami")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not allowed")

	require.NoError(t, s.fs.AppendFile("/etc/sudoers",
		[]byte("Guest whoami,cat NOPASSWD\n"), vfs.Root, "/"))

	assert.Equal(t, "root", s.run(t, "sudo whoami").Output)
	assert.Equal(t, "Guest", s.run(t, "whoami").Output)

	out = s.run(t, "sudo rm -r /etc")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "not allowed")

	// Every invocation lands in the audit log.
	log, err := s.fs.ReadFile("/var/log/sudo.log", vfs.Root, "/")
	require.NoError(t, err)
	assert.Contains(t, string(log), "Guest whoami success")
	assert.Contains(t, string(log), "Guest rm denied")
}

func TestVisudo(t *testing.T) {
	s := newTestShell(t)
	assert.Contains(t, s.run(t, "visudo").Output, "parsed OK")

	require.True(t, s.run(t, "echo onlyprincipal > bad.rules").Success)
	out := s.run(t, "visudo bad.rules")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "line 1")
}

func TestSaveAndLoadState(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo keep > keep.txt").Success)
	require.True(t, s.run(t, "savestate").Success)

	require.True(t, s.run(t, "echo scratch > scratch.txt").Success)
	p := &scriptedPrompter{confirms: []bool{true}}
	out := s.runWith(t, p, "loadstate")
	require.True(t, out.Success, out.Errors)

	assert.Equal(t, "keep", s.run(t, "cat keep.txt").Output)
	assert.False(t, s.run(t, "cat scratch.txt").Success)
}

func TestLoadStateDeclined(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "savestate").Success)
	p := &scriptedPrompter{confirms: []bool{false}}
	out := s.runWith(t, p, "loadstate")
	assert.True(t, out.Success)
	assert.Contains(t, out.Output, "cancelled")
}

func TestBackupAndRestore(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "echo precious > data.txt").Success)
	out := s.run(t, "backup /tmp/b.json")
	require.True(t, out.Success, out.Errors)
	assert.Contains(t, out.Output, "/tmp/b.json")

	require.True(t, s.run(t, "rm data.txt").Success)
	p := &scriptedPrompter{confirms: []bool{true}}
	out = s.runWith(t, p, "restore /tmp/b.json")
	require.True(t, out.Success, out.Errors)
	assert.Equal(t, "precious", s.run(t, "cat data.txt").Output)
}

func TestRestoreRejectsTamperedBackup(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "backup /tmp/b.json").Success)

	data, err := s.fs.ReadFile("/tmp/b.json", vfs.Root, "/")
	require.NoError(t, err)
	tampered := []byte(string(data))
	for i := range tampered {
		if tampered[i] == 'G' {
			tampered[i] = 'g'
			break
		}
	}
	require.NoError(t, s.fs.WriteFile("/tmp/b.json", tampered, vfs.Root, "/"))

	p := &scriptedPrompter{confirms: []bool{true}}
	out := s.runWith(t, p, "restore /tmp/b.json")
	assert.False(t, out.Success)
}

func TestHelpAndMan(t *testing.T) {
	s := newTestShell(t)
	out := s.run(t, "help")
	assert.Contains(t, out.Output, "Available commands:")
	assert.Contains(t, out.Output, "ls")

	assert.Contains(t, s.run(t, "help cat").Output, "usage: cat")
	assert.Contains(t, s.run(t, "man grep").Output, "NAME\n    grep")

	out = s.run(t, "man bogus")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "no manual entry")
}

func TestClearAndReboot(t *testing.T) {
	s := newTestShell(t)
	out := s.run(t, "clear")
	assert.Equal(t, "clear_screen", string(out.Effect))

	out = s.run(t, "reboot")
	assert.Equal(t, "reboot", string(out.Effect))
	assert.Contains(t, out.Output, "Rebooting")
}

func TestWhoamiGroupsDate(t *testing.T) {
	s := newTestShell(t)
	assert.Equal(t, "Guest", s.run(t, "whoami").Output)
	assert.Equal(t, "Guest", s.run(t, "groups").Output)
	assert.NotEmpty(t, s.run(t, "date").Output)

	out := s.run(t, "groups nobody")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "no such user")
}

func TestRemoveUser(t *testing.T) {
	s := newTestShell(t)
	require.True(t, s.run(t, "useradd eve").Success)
	require.True(t, s.run(t, "removeuser -r eve").Success)

	out := s.run(t, "su eve")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "no such user")

	out = s.run(t, "removeuser Guest")
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "cannot remove the active user")

	out = s.run(t, "removeuser root")
	assert.False(t, out.Success)
}
