// Package commands holds every builtin of the shell. Each builtin is a
// declarative command.Command value; the executor validates flags, argument
// counts and path specs before a core runs.
package commands

import (
	"strings"

	"github.com/oopisos/kernel/internal/command"
)

// RegisterAll installs the full builtin set into a registry.
func RegisterAll(reg *command.Registry) {
	for _, cmd := range []*command.Command{
		// navigation
		cdCommand(), pwdCommand(),
		// filesystem
		lsCommand(), catCommand(), touchCommand(), mkdirCommand(),
		rmCommand(), rmdirCommand(), mvCommand(), cpCommand(),
		lnCommand(), readlinkCommand(), statCommand(), duCommand(),
		treeCommand(), fileCommand(),
		// permissions
		chmodCommand(), chownCommand(), chgrpCommand(),
		// text
		grepCommand(), wcCommand(), headCommand(), tailCommand(),
		sortCommand(), uniqCommand(), diffCommand(), base64Command(),
		xargsCommand(), findCommand(),
		// printing
		echoCommand(), printfCommand(),
		// system
		clearCommand(), dateCommand(), sleepCommand(), whoamiCommand(),
		groupsCommand(), psCommand(), rebootCommand(),
		// identity
		useraddCommand(), removeuserCommand(), passwdCommand(),
		groupaddCommand(), groupdelCommand(), usermodCommand(),
		loginCommand(), suCommand(), logoutCommand(),
		sudoCommand(), visudoCommand(),
		// environment
		aliasCommand(), unaliasCommand(), setCommand(), unsetCommand(),
		exportCommand(), envCommand(), historyCommand(),
		// jobs
		jobsCommand(), fgCommand(), bgCommand(), killCommand(),
		postMessageCommand(), readMessagesCommand(),
		// persistence
		savestateCommand(), loadstateCommand(), backupCommand(),
		restoreCommand(),
		// documentation
		helpCommand(reg), manCommand(reg),
	} {
		reg.Register(cmd)
	}
}

// streamInput assembles the stdin content of a stream-consuming command:
// resolved file arguments win over piped or redirected input.
func streamInput(c *command.ExecContext) string {
	if len(c.Paths) > 0 {
		var b strings.Builder
		for _, res := range c.Paths {
			b.Write(res.Node.Content)
		}
		return b.String()
	}
	if c.HasInput {
		return c.Input
	}
	return ""
}

// lines splits text into lines, dropping a single trailing newline so a
// terminated final line does not yield a phantom empty entry.
func lines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// shellQuote renders a word so the lexer reads it back as one token.
func shellQuote(word string) string {
	if word != "" && !strings.ContainsAny(word, " \t'\"\\$*?[{}()|&;<>#~`") {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}

func shellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = shellQuote(w)
	}
	return strings.Join(quoted, " ")
}
