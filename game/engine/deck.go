package engine

import (
	"fmt"
	"math/rand/v2"
)

// NewDeck builds an ordered deck of numDecks standard decks
func NewDeck(numDecks int) []Card {
	if numDecks < MinDecks {
		numDecks = MinDecks
	}
	cards := make([]Card, 0, CardsPerDeck*numDecks)
	for d := 0; d < numDecks; d++ {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				cards = append(cards, Card{
					ID:   fmt.Sprintf("%d-%s-%s", d, rank, suit),
					Rank: rank,
					Suit: suit,
				})
			}
		}
	}
	return cards
}

// Shuffle performs an in-place Fisher-Yates shuffle
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Deal distributes cards round-robin to the players, starting with the first seat
func Deal(cards []Card, players []*Player) {
	if len(players) == 0 {
		return
	}
	for i, card := range cards {
		p := players[i%len(players)]
		p.Hand = append(p.Hand, card)
	}
}
