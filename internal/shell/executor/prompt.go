package executor

import (
	"strings"

	"github.com/oopisos/kernel/internal/session"
)

// Hostname rendered by the \h prompt escape.
const Hostname = "oopisos"

// Prompt renders the session's PS1 template. Supported escapes: \u user,
// \h host, \w working directory (home contracted to ~), \$ which is #
// for root and $ otherwise.
func Prompt(sess *session.Session) string {
	ps1 := sess.Env().Get("PS1")
	if ps1 == "" {
		ps1 = `\u@\h:\w\$ `
	}
	user := sess.User()
	cwd := sess.Cwd()
	if home := sess.Env().Get("HOME"); home != "" {
		if cwd == home {
			cwd = "~"
		} else if strings.HasPrefix(cwd, home+"/") {
			cwd = "~" + cwd[len(home):]
		}
	}
	dollar := "$"
	if user == "root" {
		dollar = "#"
	}

	var b strings.Builder
	for i := 0; i < len(ps1); i++ {
		if ps1[i] != '\\' || i+1 >= len(ps1) {
			b.WriteByte(ps1[i])
			continue
		}
		i++
		switch ps1[i] {
		case 'u':
			b.WriteString(user)
		case 'h':
			b.WriteString(Hostname)
		case 'w':
			b.WriteString(cwd)
		case '$':
			b.WriteString(dollar)
		default:
			b.WriteByte('\\')
			b.WriteByte(ps1[i])
		}
	}
	return b.String()
}
