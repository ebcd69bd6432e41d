package commands

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/wirebot/internal/blacklist"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/utils"
)

const maxNameLength = 18

// Info is static text used by the informational commands.
type Info struct {
	Name     string
	Fork     string
	BotGuide string
}

// RegisterBuiltins installs the stock command set.
func RegisterBuiltins(r *Registry, info Info) {
	b := &builtins{registry: r, info: info}

	r.Register(Command{Name: "about", Handler: b.about}, "credits")
	r.Register(Command{Name: "git", Handler: b.git})
	r.Register(Command{Name: "guide", Handler: b.guide}, "help")
	r.Register(Command{Name: "uptime", Handler: b.uptime})

	r.Register(Command{Name: "set", Handler: b.set}, "settings")

	r.Register(Command{Name: "autoban", Configurable: true, Handler: b.autoban}, "blacklist", "ban", "ab")
	r.Register(Command{Name: "unautoban", Handler: b.unautoban}, "unblacklist", "unban", "unab")
	r.Register(Command{Name: "regexautoban", Handler: b.regexautoban}, "rab")
	r.Register(Command{Name: "unregexautoban", Handler: b.unregexautoban}, "unrab")
	r.Register(Command{Name: "viewblacklist", Handler: b.viewblacklist}, "viewbans", "vab", "viewautobans")

	r.Register(Command{Name: "banword", Configurable: true, Handler: b.banword}, "banphrase")
	r.Register(Command{Name: "unbanword", Handler: b.unbanword}, "unbanphrase")
	r.Register(Command{Name: "viewbannedwords", Handler: b.viewbannedwords}, "viewbannedphrases", "vbw")

	r.Register(Command{Name: "say", Configurable: true, Handler: b.say}, "tell")
	r.Register(Command{Name: "seen", Handler: b.seen})
}

type builtins struct {
	registry *Registry
	info     Info
}

func (b *builtins) about(c *Context) {
	name := b.info.Name
	if name == "" {
		name = "wirebot"
	}
	c.ReplyRoomIf(c.HasRank(core.RankOwner), "**"+name+"** chat moderation bot")
}

func (b *builtins) git(c *Context) {
	if b.info.Fork == "" {
		c.ReplyPrivately("No source repository is configured.")
		return
	}
	c.ReplyRoomIf(c.Bot.IsExcepted(c.User), "**Source code:** "+b.info.Fork)
}

func (b *builtins) guide(c *Context) {
	text := "There is no guide for this bot. PM the owner with any questions."
	if b.info.BotGuide != "" {
		text = "A guide on how to use this bot can be found here: " + b.info.BotGuide
	}
	c.ReplyRoomIf(c.HasRank(core.RankOwner), text)
}

func (b *builtins) uptime(c *Context) {
	text := "**Uptime:** " + FormatUptime(c.Bot.Uptime())
	c.ReplyRoomIf(c.InPM() || c.Bot.IsExcepted(c.User), text)
}

func (b *builtins) set(c *Context) {
	if c.InPM() || !c.HasRank(core.RankOwner) {
		return
	}
	opts := strings.Split(c.Arg, ",")
	target := utils.ToID(opts[0])
	snap := c.Bot.Settings()
	room := c.Room.ID

	if target == "m" || target == "mod" || target == "modding" {
		b.setModeration(c, opts)
		return
	}

	cmd, err := b.registry.Resolve(target)
	if err != nil {
		c.Reply(c.Prefix + strings.TrimSpace(opts[0]) + " is not a valid command.")
		return
	}
	if !cmd.Configurable {
		c.Reply("The settings for " + c.Prefix + strings.TrimSpace(opts[0]) + " cannot be changed.")
		return
	}

	if len(opts) < 2 || strings.TrimSpace(opts[1]) == "" {
		level, ok := snap.CommandLevel(cmd.Name, room)
		msg := c.Prefix + cmd.Name + " is "
		switch {
		case !ok:
			msg += "available for users of rank " + string(DefaultLevel(cmd.Name, c.Bot.DefaultRank())) + " and above."
		case level == settings.LevelOn:
			msg += "available for all users in this room."
		case level == settings.LevelOff:
			msg += "not available for use in this room."
		default:
			msg += "available for users of rank " + level + " and above."
		}
		c.Reply(msg)
		return
	}

	level, ok := ParseLevel(strings.TrimSpace(opts[1]), c.Bot.Ranks())
	if !ok {
		c.Reply(`Unknown option: "` + strings.TrimSpace(opts[1]) + `". Valid settings are: off/disable/false, +, %, @, #, &, ~, on/enable/true.`)
		return
	}
	snap.SetCommandLevel(cmd.Name, room, level)
	c.Bot.SaveSettings()

	msg := "The command " + c.Prefix + cmd.Name + " is now "
	switch level {
	case settings.LevelOn:
		msg += "available for all users in this room."
	case settings.LevelOff:
		msg += "unavailable for use in this room."
	default:
		msg += "available for users of rank " + level + " and above."
	}
	c.Reply(msg)
}

func (b *builtins) setModeration(c *Context, opts []string) {
	usage := "Incorrect command: correct syntax is " + c.Prefix + "set mod, [" +
		strings.Join(settings.ModerationOptions, "/") + "](, [on/off])"
	if len(opts) < 2 {
		c.Reply(usage)
		return
	}
	option := utils.ToID(opts[1])
	if !settings.IsModerationOption(option) {
		c.Reply(usage)
		return
	}

	snap := c.Bot.Settings()
	room := c.Room.ID
	if len(opts) < 3 || utils.ToID(opts[2]) == "" {
		state := "ON"
		if !snap.ModerationEnabled(room, option) {
			state = "OFF"
		}
		c.Reply("Moderation for " + option + " in this room is currently " + state + ".")
		return
	}

	switch utils.ToID(opts[2]) {
	case "on":
		snap.SetModeration(room, option, true)
	case "off":
		snap.SetModeration(room, option, false)
	default:
		c.Reply(usage)
		return
	}
	c.Bot.SaveSettings()
	c.Reply("Moderation for " + option + " in this room is now " + strings.ToUpper(utils.ToID(opts[2])) + ".")
}

func (b *builtins) requireBlacklistRights(c *Context) bool {
	if c.SelfHasRank(core.RankModerator) {
		return true
	}
	c.Reply(c.Bot.Self().Name + " requires rank of @ or higher to (un)blacklist.")
	return false
}

func (b *builtins) autoban(c *Context) {
	if c.InPM() || !c.CanUse("autoban") {
		return
	}
	if !b.requireBlacklistRights(c) {
		return
	}
	if utils.ToID(c.Arg) == "" {
		c.Reply("You must specify at least one user to blacklist.")
		return
	}

	var added, already, illegal []string
	for _, name := range strings.Split(c.Arg, ",") {
		id := utils.ToID(name)
		if id == "" || len(id) > maxNameLength {
			illegal = append(illegal, id)
			continue
		}
		ok, err := c.Bot.Blacklist(c.Room.ID, id)
		if err != nil {
			c.Reply(err.Error())
			return
		}
		if !ok {
			already = append(already, id)
			continue
		}
		added = append(added, id)
		c.Reply(proto.Directive("roomban", id, "Blacklisted user"))
	}

	var text string
	if len(added) > 0 {
		text = listSentence("User", added, "was", "were") + " added to the blacklist."
		c.Reply("/modnote " + text + " by " + c.User.Name + ".")
		c.Bot.SaveSettings()
	}
	if len(already) > 0 {
		text = joinSentences(text, listSentence("User", already, "is", "are")+" already present in the blacklist.")
	}
	if len(illegal) > 0 {
		if text != "" {
			text += " All other users had illegal nicks and were not blacklisted."
		} else {
			text = "All users had illegal nicks and were not blacklisted."
		}
	}
	c.Reply(text)
}

func (b *builtins) unautoban(c *Context) {
	if c.InPM() || !c.CanUse("autoban") {
		return
	}
	if !b.requireBlacklistRights(c) {
		return
	}
	if utils.ToID(c.Arg) == "" {
		c.Reply("You must specify at least one user to unblacklist.")
		return
	}

	var removed []string
	missing := 0
	for _, name := range strings.Split(c.Arg, ",") {
		id := utils.ToID(name)
		if id == "" || len(id) > maxNameLength {
			missing++
			continue
		}
		ok, err := c.Bot.Unblacklist(c.Room.ID, id)
		if err != nil {
			c.Reply(err.Error())
			return
		}
		if !ok {
			missing++
			continue
		}
		removed = append(removed, id)
		c.Reply("/roomunban " + id)
	}

	var text string
	if len(removed) > 0 {
		text = listSentence("User", removed, "was", "were") + " removed from the blacklist"
		c.Reply("/modnote " + text + " by user " + c.User.Name + ".")
		c.Bot.SaveSettings()
		text += "."
	}
	if missing > 0 {
		if text != "" {
			text += " No other specified users were present in the blacklist."
		} else {
			text = "No specified users were present in the blacklist."
		}
	}
	c.Reply(text)
}

func (b *builtins) regexautoban(c *Context) {
	if c.InPM() || !c.Bot.IsRegexWhitelisted(c.User) || !c.CanUse("autoban") {
		return
	}
	if !b.requireBlacklistRights(c) {
		return
	}
	if c.Arg == "" {
		c.Reply("You must specify a regular expression to (un)blacklist.")
		return
	}

	re, err := blacklist.Compile(c.Arg)
	if err != nil {
		c.Reply(err.Error())
		return
	}
	// A pattern matching these ordinary names (or the issuer) is too broad.
	for _, probe := range []string{"xfix", "slayer95", c.User.ID} {
		if blacklist.Match(re, probe) {
			c.Reply("Regular expression /" + c.Arg + "/i cannot be added to the blacklist as it's not specific enough.")
			return
		}
	}

	entry := blacklist.FormatPattern(c.Arg)
	added, err := c.Bot.Blacklist(c.Room.ID, entry)
	if err != nil {
		c.Reply(err.Error())
		return
	}
	if !added {
		c.Reply(entry + " is already present in the blacklist.")
		return
	}

	if room := c.Bot.Room(c.Room.ID); room != nil {
		self := c.Bot.Self()
		selfRank := room.Users[self.ID]
		ranks := c.Bot.Ranks()
		for id, rank := range room.Users {
			if id == self.ID || !blacklist.Match(re, id) || !ranks.Less(rank, selfRank) {
				continue
			}
			c.Reply(proto.Directive("roomban", id, "Blacklisted user"))
		}
	}

	c.Bot.SaveSettings()
	c.Reply("/modnote Regular expression " + entry + " was added to the blacklist by user " + c.User.Name + ".")
	c.Reply("Regular expression " + entry + " was added to the blacklist.")
}

func (b *builtins) unregexautoban(c *Context) {
	if c.InPM() || !c.Bot.IsRegexWhitelisted(c.User) || !c.CanUse("autoban") {
		return
	}
	if !b.requireBlacklistRights(c) {
		return
	}
	if c.Arg == "" {
		c.Reply("You must specify a regular expression to (un)blacklist.")
		return
	}

	entry := blacklist.FormatPattern(strings.ReplaceAll(c.Arg, `\\`, `\`))
	removed, err := c.Bot.Unblacklist(c.Room.ID, entry)
	if err != nil {
		c.Reply(err.Error())
		return
	}
	if !removed {
		c.Reply(entry + " is not present in the blacklist.")
		return
	}

	c.Bot.SaveSettings()
	c.Reply("/modnote Regular expression " + entry + " was removed from the blacklist by user " + c.User.Name + ".")
	c.Reply("Regular expression " + entry + " was removed from the blacklist.")
}

func (b *builtins) viewblacklist(c *Context) {
	if c.InPM() || !c.CanUse("autoban") {
		return
	}
	room := c.Room.ID
	entries := c.Bot.Settings().BlacklistEntries(room)

	if c.Arg == "" {
		if len(entries) == 0 {
			c.ReplyPrivately("No users are blacklisted in this room.")
			return
		}
		c.ReplyPrivately("Blacklist for room " + room + ": " + strings.Join(entries, ", "))
		return
	}

	id := utils.ToID(c.Arg)
	if id == "" || len(id) > maxNameLength {
		c.ReplyPrivately(`Invalid username: "` + id + `".`)
		return
	}
	state := "not "
	if c.Bot.Settings().HasBlacklistEntry(room, id) {
		state = ""
	}
	c.ReplyPrivately("User " + id + " is currently " + state + "blacklisted in " + room + ".")
}

// phraseScope picks the banned-phrase scope for the invocation: global from
// PMs by excepted users, otherwise the current room.
func phraseScope(c *Context) (string, bool) {
	if c.InPM() {
		return settings.GlobalScope, c.Bot.IsExcepted(c.User)
	}
	return c.Room.ID, c.CanUse("banword")
}

func (b *builtins) banword(c *Context) {
	phrase := strings.ToLower(strings.TrimSpace(c.Arg))
	if phrase == "" {
		return
	}
	scope, ok := phraseScope(c)
	if !ok {
		return
	}
	if !c.Bot.Settings().AddBannedPhrase(scope, phrase) {
		c.Reply(`Phrase "` + phrase + `" is already banned.`)
		return
	}
	c.Bot.SaveSettings()
	c.Reply(`Phrase "` + phrase + `" is now banned.`)
}

func (b *builtins) unbanword(c *Context) {
	scope, ok := phraseScope(c)
	if !ok {
		return
	}
	phrase := strings.ToLower(strings.TrimSpace(c.Arg))
	if phrase == "" {
		return
	}
	if !c.Bot.Settings().RemoveBannedPhrase(scope, phrase) {
		c.Reply(`Phrase "` + phrase + `" is not currently banned.`)
		return
	}
	c.Bot.SaveSettings()
	c.Reply(`Phrase "` + phrase + `" is no longer banned.`)
}

func (b *builtins) viewbannedwords(c *Context) {
	scope, ok := phraseScope(c)
	if !ok {
		return
	}
	from := "in " + scope
	if scope == settings.GlobalScope {
		from = "globally"
	}

	phrases := c.Bot.Settings().RoomBannedPhrases(scope)
	if phrase := strings.ToLower(strings.TrimSpace(c.Arg)); phrase != "" {
		state := "not "
		for _, p := range phrases {
			if p == phrase {
				state = ""
				break
			}
		}
		c.ReplyPrivately(`The phrase "` + phrase + `" is currently ` + state + "banned " + from + ".")
		return
	}
	if len(phrases) == 0 {
		c.ReplyPrivately("No phrases are banned in this room.")
		return
	}
	c.ReplyPrivately("Banned phrases " + from + ": " + strings.Join(phrases, ", "))
}

func (b *builtins) say(c *Context) {
	if c.InPM() || !c.CanUse("say") {
		return
	}
	c.Reply(StripCommands(c.Arg) + " (" + c.User.Name + " said this)")
}

func (b *builtins) seen(c *Context) {
	reply := c.ReplyPrivately
	if c.InPM() {
		reply = c.Reply
	}

	id := utils.ToID(c.Arg)
	switch {
	case id == "" || len(id) > maxNameLength:
		reply("Invalid username.")
		return
	case id == c.User.ID:
		reply("Have you looked in the mirror lately?")
		return
	case id == c.Bot.Self().ID:
		reply("You might be either blind or illiterate. Might want to get that checked out.")
		return
	}

	now := c.Bot.Now()
	c.Bot.Seen(id, func(desc string, at time.Time, ok bool) {
		if !ok {
			reply("The user " + id + " has never been seen.")
			return
		}
		text := id + " was last seen " + humanize.RelTime(at, now, "ago", "from now")
		if desc != "" {
			text += ", " + desc
		} else {
			text += "."
		}
		reply(text)
	})
}
