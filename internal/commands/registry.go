// Package commands resolves chat commands, follows alias chains and runs the
// built-in command set against a Bot.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/utils"
)

// MaxAliasDepth bounds alias chains so a cycle cannot loop forever.
const MaxAliasDepth = 10

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrAliasLoop      = errors.New("alias chain too deep")
)

// Handler runs a resolved command.
type Handler func(c *Context)

// Command is a registered command.
type Command struct {
	Name string
	// Configurable commands accept per-room levels through "set".
	Configurable bool
	Handler      Handler
}

// Registry maps command names and aliases to handlers.
type Registry struct {
	prefix   string
	commands map[string]*Command
	aliases  map[string]string
	log      *zerolog.Logger
}

// NewRegistry creates an empty registry for the given command prefix.
func NewRegistry(prefix string, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		prefix:   prefix,
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		log:      logger,
	}
}

// Prefix returns the command character.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Register adds a command, replacing any command or alias with the same name.
func (r *Registry) Register(cmd Command, aliases ...string) {
	delete(r.aliases, cmd.Name)
	c := cmd
	r.commands[cmd.Name] = &c
	for _, alias := range aliases {
		r.Alias(alias, cmd.Name)
	}
}

// Alias points alias at target. target may itself be an alias.
func (r *Registry) Alias(alias, target string) {
	delete(r.commands, alias)
	r.aliases[alias] = target
}

// Resolve follows aliases from name to a command.
func (r *Registry) Resolve(name string) (*Command, error) {
	for depth := 0; ; depth++ {
		if cmd, ok := r.commands[name]; ok {
			return cmd, nil
		}
		target, ok := r.aliases[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		}
		if depth >= MaxAliasDepth {
			return nil, fmt.Errorf("%w: %s", ErrAliasLoop, name)
		}
		name = target
	}
}

// Parse splits "<prefix><cmd> <arg>". ok is false when text lacks the prefix.
func (r *Registry) Parse(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if r.prefix == "" || !strings.HasPrefix(text, r.prefix) {
		return "", "", false
	}
	text = text[len(r.prefix):]
	name, arg, _ = strings.Cut(text, " ")
	return name, strings.TrimSpace(arg), true
}

// Dispatch runs the command in text for user in room. It reports whether
// text was addressed to the command layer at all, even if the command was
// unknown or declined.
func (r *Registry) Dispatch(bot Bot, text string, user *core.User, room proto.Target) bool {
	name, arg, ok := r.Parse(text)
	if !ok {
		return false
	}

	cmd, err := r.Resolve(strings.ToLower(name))
	if err != nil {
		if errors.Is(err, ErrAliasLoop) {
			r.log.Error().Err(err).Str("command", name).Msg("alias chain")
		}
		return true
	}

	r.log.Debug().
		Str("dir", "cmdr").
		Str("room", room.ID).
		Str("user", user.Name).
		Str("command", cmd.Name).
		Msg(text)

	cmd.Handler(&Context{
		Bot:     bot,
		User:    user,
		Room:    room,
		Command: cmd.Name,
		Invoked: utils.ToID(name),
		Arg:     arg,
		Prefix:  r.prefix,
	})
	return true
}
