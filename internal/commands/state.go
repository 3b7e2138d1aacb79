package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func savestateCommand() *command.Command {
	return &command.Command{
		Name:        "savestate",
		Description: "Save a manual session snapshot.",
		HelpText: `savestate
Writes a manual snapshot (filesystem, environment, history, aliases) for the
active user. Automatic saves never touch it; loadstate restores it.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			if err := c.FS.Save(c.Ctx); err != nil {
				return types.FailErr(err)
			}
			if err := c.Sessions.SaveManual(c.Ctx, c.Session); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:     true,
				Output:      "Session state saved for " + c.User + ".",
				MessageType: types.MessageSuccess,
			}
		},
	}
}

func loadstateCommand() *command.Command {
	return &command.Command{
		Name:        "loadstate",
		Description: "Restore the manual session snapshot.",
		HelpText: `loadstate
Restores the active user's manual snapshot atomically: filesystem, working
directory, environment, history and aliases. The attached terminal is asked
to confirm, since unsaved state is lost.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			if c.Interactive() {
				ok, err := c.Prompter.Confirm(c.Ctx, "Restore the saved state for "+c.User+"? Unsaved changes are lost.")
				if err != nil {
					return types.FailErr(err)
				}
				if !ok {
					return types.Ok("Restore cancelled.")
				}
			}
			if err := c.Sessions.RestoreManual(c.Ctx, c.Session); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:       true,
				Output:        "Session state restored for " + c.User + ".",
				MessageType:   types.MessageSuccess,
				StateModified: true,
			}
		},
	}
}

func backupCommand() *command.Command {
	return &command.Command{
		Name:        "backup",
		Description: "Write a full system backup file.",
		HelpText: `backup [file]
Writes the whole system state (filesystem, credentials, groups, session
snapshots, aliases) with an integrity checksum to the given file
(oopisos-backup.json by default).`,
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			path := "oopisos-backup.json"
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			data, err := c.Sessions.Backup(c.Ctx)
			if err != nil {
				return types.FailErr(err)
			}
			if err := c.FS.WriteFile(path, data, c.Cred, c.Cwd()); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:       true,
				Output:        "Backup written to " + c.FS.Canonical(path, c.Cwd()) + ".",
				MessageType:   types.MessageSuccess,
				StateModified: true,
			}
		},
	}
}

func restoreCommand() *command.Command {
	return &command.Command{
		Name:        "restore",
		Description: "Restore the system from a backup file.",
		HelpText: `restore <file>
Verifies the backup's checksum and installs it: filesystem, credentials,
groups, session snapshots and aliases. The terminal reloads afterwards.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			data, err := c.FS.ReadFile(c.Args[0], c.Cred, c.Cwd())
			if err != nil {
				return types.FailErr(err)
			}
			if c.Interactive() {
				ok, err := c.Prompter.Confirm(c.Ctx, "Replace the entire system state with this backup?")
				if err != nil {
					return types.FailErr(err)
				}
				if !ok {
					return types.Ok("Restore cancelled.")
				}
			}
			if err := c.Sessions.RestoreBackup(c.Ctx, data); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:     true,
				Output:      "System restored. Rebooting...",
				MessageType: types.MessageSuccess,
				Effect:      types.EffectReboot,
			}
		},
	}
}
