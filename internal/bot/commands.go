package bot

import (
	"strings"
)

// Handler answers one command. args are the whitespace separated words
// after the command name.
type Handler func(s *Service, req Request) string

// Command is an entry in the command registry.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string
	Handler Handler
}

// commands is the full set of commands the bot understands. Anything else
// is answered with the help text.
var commands = []Command{
	{Name: "list", Aliases: []string{"watchlist"}, Help: "show subreddits on your watchlist", Handler: (*Service).list},
	{Name: "watch", Usage: "<subreddit name> <optional regex>", Help: "watch latest posts on the specified subreddit that have their title matching the regex", Handler: (*Service).watchFeed},
	{Name: "unwatch", Usage: "<subreddit name>", Help: "remove subreddit from watchlist", Handler: (*Service).unwatch},
	{Name: "regclear", Usage: "<subreddit name>", Help: "change regex of subreddit to empty", Handler: (*Service).clearPattern},
	{Name: "regshow", Usage: "<subreddit name>", Help: "show regex applied for subreddit", Handler: (*Service).showPattern},
	{Name: "enable", Help: "start polling subreddits for new posts every 5 minutes", Handler: (*Service).enable},
	{Name: "disable", Help: "stop polling subreddits", Handler: (*Service).disable},
}

var commandIndex = buildIndex(commands)

func buildIndex(cmds []Command) map[string]*Command {
	index := make(map[string]*Command)
	for i := range cmds {
		c := &cmds[i]
		index[c.Name] = c
		for _, alias := range c.Aliases {
			index[alias] = c
		}
	}
	return index
}

// Lookup finds a command by name or alias.
func Lookup(name string) (*Command, bool) {
	c, ok := commandIndex[strings.ToLower(name)]
	return c, ok
}

func (c *Command) usageLine() string {
	if c.Usage == "" {
		return "Usage: /" + c.Name
	}
	return "Usage: /" + c.Name + " " + c.Usage
}

// HelpText lists all commands.
func HelpText() string {
	var b strings.Builder
	for i, c := range commands {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("/" + c.Name)
		if c.Usage != "" {
			b.WriteString(" " + c.Usage)
		}
		b.WriteString(" - " + c.Help)
	}
	return b.String()
}

// ParseCommand splits "/watch@subwatch_bot space launch" into the command
// name and its arguments. ok is false when text is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
