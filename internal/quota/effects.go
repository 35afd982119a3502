package quota

// EffectKind identifies an outbound instruction for the game server.
type EffectKind int

const (
	// EffectTell is a direct message to one player.
	EffectTell EffectKind = iota
	// EffectBroadcast is a formatted message to everyone.
	EffectBroadcast
	// EffectTitle is a title/subtitle overlay; an empty Player targets everyone.
	EffectTitle
	// EffectBan bans Player with Reason.
	EffectBan
	// EffectPardon lifts a ban on Player.
	EffectPardon
)

func (k EffectKind) String() string {
	switch k {
	case EffectTell:
		return "tell"
	case EffectBroadcast:
		return "broadcast"
	case EffectTitle:
		return "title"
	case EffectBan:
		return "ban"
	case EffectPardon:
		return "pardon"
	default:
		return "unknown"
	}
}

// Part is one styled span of a chat message.
type Part struct {
	Text  string
	Color string
	Bold  bool
}

// Text builds a plain coloured span.
func Text(text, color string) Part {
	return Part{Text: text, Color: color}
}

// Bold builds a bold coloured span.
func Bold(text, color string) Part {
	return Part{Text: text, Color: color, Bold: true}
}

// Effect is a side effect produced by the quota core and executed against
// the game server by the outbound dispatcher.
type Effect struct {
	Kind     EffectKind
	Player   string
	Parts    []Part
	Subtitle []Part
	Reason   string
}

// Tell builds a direct message.
func Tell(player string, parts ...Part) Effect {
	return Effect{Kind: EffectTell, Player: player, Parts: parts}
}

// Broadcast builds a message to all players.
func Broadcast(parts ...Part) Effect {
	return Effect{Kind: EffectBroadcast, Parts: parts}
}

// Title builds a title overlay for player, or everyone when player is empty.
// A zero subtitle is omitted.
func Title(player string, title, subtitle Part) Effect {
	e := Effect{Kind: EffectTitle, Player: player, Parts: []Part{title}}
	if subtitle.Text != "" {
		e.Subtitle = []Part{subtitle}
	}
	return e
}

// Ban builds a ban command.
func Ban(player, reason string) Effect {
	return Effect{Kind: EffectBan, Player: player, Reason: reason}
}

// Pardon builds an unban command.
func Pardon(player string) Effect {
	return Effect{Kind: EffectPardon, Player: player}
}

// PlainText concatenates the text of the effect's parts.
func (e Effect) PlainText() string {
	var s string
	for _, p := range e.Parts {
		s += p.Text
	}
	return s
}
