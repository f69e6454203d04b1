// Package bot provides in-process players for the slap card game.
//
// A Brain turns a client view into intents (ready up, play, slap, vote). It sees
// exactly what a human client sees, so it slaps on the visible top of the pile
// and can be wrong about rules that look deeper.
//
// A Driver binds a Brain to a room.Synthetic connection. It reacts to "state"
// snapshots by scheduling each intent after a reaction delay and hands the
// resulting request to an Actor, normally the game service, which treats it like
// any client frame:
//
//	d := bot.NewDriver(id, gameService, bot.DefaultOptions())
//	router.Register(d.Conn())
//
// The offline simulator in cmd/analyze drives Brains directly without timers.
package bot
