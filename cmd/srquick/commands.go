package main

import (
	"errors"

	"github.com/MarkoPoloResearchLab/srquick/internal/presenter"
	"github.com/MarkoPoloResearchLab/srquick/pkg/imageref"
	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"github.com/spf13/cobra"
)

const (
	flagPrimary      = "primary"
	flagNickname     = "nickname"
	flagAvatarURL    = "avatar-url"
	flagLevel        = "level"
	flagWorldLevel   = "world-level"
	flagForce        = "force"
	flagOff          = "off"
	flagLimit        = "limit"
	flagStrategy     = "strategy"
	flagAutoSync     = "auto-sync"
	flagNotify       = "notifications"
	flagTheme        = "theme"
	flagLanguage     = "language"
	defaultLogsLimit = 10
)

var errNoAccount = errors.New(presenter.MessageNeedAccount)

func newHealthCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.report(application.client.Health(cmd.Context()))
		},
	}
}

func newDebugIPCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-ip",
		Short: "Show the client address seen by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.report(application.client.DebugIP(cmd.Context()))
		},
	}
}

func newUserCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Query or bind the calling user"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "type",
			Short: "Show the user type and bound UIDs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return application.report(application.client.UserType(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "bind UID",
			Short: "Bind a game UID to the user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				uid, err := parseUID(args[0])
				if err != nil {
					return application.report(nil, err)
				}
				return application.report(application.client.BindUID(cmd.Context(), uid))
			},
		},
	)
	return cmd
}

func newPlayerCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{Use: "player", Short: "Read player data"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh UID",
			Short: "Refresh cached player data",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				uid, err := parseUID(args[0])
				if err != nil {
					return application.report(nil, err)
				}
				return application.report(application.client.RefreshPlayer(cmd.Context(), uid))
			},
		},
		&cobra.Command{
			Use:   "summary UID",
			Short: "Show the player summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				uid, err := parseUID(args[0])
				if err != nil {
					return application.report(nil, err)
				}
				return application.report(application.client.PlayerSummary(cmd.Context(), uid))
			},
		},
		&cobra.Command{
			Use:   "character UID CHARACTER_ID",
			Short: "Show one character in detail",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				uid, characterID, err := parseCharacter(args[0], args[1])
				if err != nil {
					return application.report(nil, err)
				}
				return application.report(application.client.CharacterDetail(cmd.Context(), uid, characterID))
			},
		},
	)
	return cmd
}

func newLoginCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			result := sessions.Login(cmd.Context())
			application.presenter.Login(result)
			if !result.OK {
				return result.Err
			}
			return application.print(sessions.Snapshot())
		},
	}
}

func newLogoutCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			application.presenter.Logout(sessions.Logout(cmd.Context()))
			return nil
		},
	}
}

func newProfileCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the session, or update the nickname and avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			update := srquick.ProfileUpdate{}
			update.Nickname, _ = cmd.Flags().GetString(flagNickname)
			update.AvatarURL, _ = cmd.Flags().GetString(flagAvatarURL)
			if update != (srquick.ProfileUpdate{}) {
				_, err := sessions.UpdateUserInfo(cmd.Context(), update)
				application.presenter.Outcome(presenter.MessageProfileUpdated, err)
				if err != nil {
					return err
				}
			}
			return application.print(sessions.Snapshot())
		},
	}
	cmd.Flags().String(flagNickname, "", "new nickname")
	cmd.Flags().String(flagAvatarURL, "", "new avatar url")
	return cmd
}

func newSettingsCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change user settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			update := srquick.SettingsUpdate{}
			changed := false
			if flags.Changed(flagAutoSync) {
				value, _ := flags.GetBool(flagAutoSync)
				update.AutoSync, changed = &value, true
			}
			if flags.Changed(flagNotify) {
				value, _ := flags.GetBool(flagNotify)
				update.Notifications, changed = &value, true
			}
			if flags.Changed(flagTheme) {
				value, _ := flags.GetString(flagTheme)
				update.Theme, changed = &value, true
			}
			if flags.Changed(flagLanguage) {
				value, _ := flags.GetString(flagLanguage)
				update.Language, changed = &value, true
			}
			if !changed {
				return application.report(application.client.Settings(cmd.Context()))
			}
			return application.report(application.client.UpdateSettings(cmd.Context(), update))
		},
	}
	cmd.Flags().Bool(flagAutoSync, false, "sync characters automatically")
	cmd.Flags().Bool(flagNotify, false, "enable notifications")
	cmd.Flags().String(flagTheme, "", "ui theme")
	cmd.Flags().String(flagLanguage, "", "ui language")
	return cmd
}

func newAccountCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage bound game accounts"}

	add := &cobra.Command{
		Use:   "add UID",
		Short: "Bind a game account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[0])
			if err != nil {
				return application.report(nil, err)
			}
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			request := srquick.AddGameAccountRequest{UID: uid.String()}
			request.IsPrimary, _ = cmd.Flags().GetBool(flagPrimary)
			request.Nickname, _ = cmd.Flags().GetString(flagNickname)
			request.Level, _ = cmd.Flags().GetInt(flagLevel)
			request.WorldLevel, _ = cmd.Flags().GetInt(flagWorldLevel)
			account, err := sessions.AddGameAccount(cmd.Context(), request)
			application.presenter.Outcome(presenter.MessageAccountAdded, err)
			if err != nil {
				return err
			}
			return application.print(account)
		},
	}
	add.Flags().Bool(flagPrimary, false, "make the account primary")
	add.Flags().String(flagNickname, "", "in-game nickname")
	add.Flags().Int(flagLevel, 0, "trailblaze level")
	add.Flags().Int(flagWorldLevel, 0, "equilibrium level")

	primary := &cobra.Command{
		Use:   "primary UID",
		Short: "Make a bound account primary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[0])
			if err != nil {
				return application.report(nil, err)
			}
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			err = sessions.SetPrimaryAccount(cmd.Context(), uid)
			application.presenter.Outcome(presenter.MessagePrimarySet, err)
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List bound accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := application.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := sessions.RefreshGameAccounts(cmd.Context()); err != nil {
				return application.report(nil, err)
			}
			return application.print(sessions.Snapshot().GameAccounts)
		},
	}

	cmd.AddCommand(add, primary, list)
	return cmd
}

// targetUID parses args[0] when given, else falls back to the primary account.
func (application *app) targetUID(cmd *cobra.Command, args []string) (srquick.UID, error) {
	if len(args) > 0 {
		return parseUID(args[0])
	}
	sessions, err := application.session(cmd.Context())
	if err != nil {
		return srquick.UID{}, err
	}
	if err := sessions.RefreshGameAccounts(cmd.Context()); err != nil {
		return srquick.UID{}, err
	}
	primary := sessions.PrimaryAccount()
	if primary == nil {
		return srquick.UID{}, errNoAccount
	}
	return parseUID(primary.UID)
}

func newSyncCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [UID]",
		Short: "Sync characters of a game account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := application.targetUID(cmd, args)
			if err != nil {
				return application.report(nil, err)
			}
			roster, err := application.characters()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool(flagForce)
			result, err := roster.SyncCharacters(cmd.Context(), uid, force)
			application.presenter.Synced(result, err)
			if err != nil {
				return err
			}
			return application.print(roster.Snapshot())
		},
	}
	cmd.Flags().Bool(flagForce, false, "update characters that are already stored")
	return cmd
}

func newCharactersCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "characters [UID]",
		Short: "List stored characters, of every account when UID is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var uid srquick.UID
			if len(args) > 0 {
				parsed, err := parseUID(args[0])
				if err != nil {
					return application.report(nil, err)
				}
				uid = parsed
			}
			roster, err := application.characters()
			if err != nil {
				return err
			}
			if err := roster.GetCharacters(cmd.Context(), uid); err != nil {
				return application.report(nil, err)
			}
			return application.print(roster.Snapshot().Characters)
		},
	}
}

func newFavoriteCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite UID CHARACTER_ID",
		Short: "Mark a character as favorite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, characterID, err := parseCharacter(args[0], args[1])
			if err != nil {
				return application.report(nil, err)
			}
			roster, err := application.characters()
			if err != nil {
				return err
			}
			off, _ := cmd.Flags().GetBool(flagOff)
			err = roster.ToggleCharacterFavorite(cmd.Context(), uid, characterID, !off)
			application.presenter.Favorite(!off, err)
			return err
		},
	}
	cmd.Flags().Bool(flagOff, false, "remove the favorite mark instead")
	return cmd
}

func newDeleteCharacterCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-character UID CHARACTER_ID",
		Short: "Delete a stored character",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, characterID, err := parseCharacter(args[0], args[1])
			if err != nil {
				return application.report(nil, err)
			}
			roster, err := application.characters()
			if err != nil {
				return err
			}
			err = roster.DeleteCharacter(cmd.Context(), uid, characterID)
			application.presenter.Outcome(presenter.MessageCharacterDeleted, err)
			return err
		},
	}
}

func newSyncLogsCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-logs",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt(flagLimit)
			return application.report(application.client.SyncLogs(cmd.Context(), limit))
		},
	}
	cmd.Flags().Int(flagLimit, defaultLogsLimit, "number of runs to show")
	return cmd
}

func newStatsCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account and character counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.report(application.client.Stats(cmd.Context()))
		},
	}
}

func newImageCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image PATH",
		Short: "Resolve an asset path to a displayable source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := application.resolver()
			if err != nil {
				return err
			}
			strategy, _ := cmd.Flags().GetString(flagStrategy)
			return application.print(resolver.Resolve(cmd.Context(), args[0], imageref.Strategy(strategy)))
		},
	}
	cmd.Flags().String(flagStrategy, string(imageref.StrategyReference), "reference or signedUrl")
	return cmd
}
