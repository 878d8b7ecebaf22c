package participant

import (
	"fmt"
	"math/rand/v2"
)

var adjectives = []string{
	"Brave", "Calm", "Clever", "Curious", "Eager", "Gentle", "Happy", "Jolly",
	"Kind", "Lively", "Lucky", "Mellow", "Nimble", "Quiet", "Quick", "Sunny",
	"Swift", "Witty", "Bold", "Bright",
}

var animals = []string{
	"Badger", "Crane", "Dolphin", "Falcon", "Fox", "Hedgehog", "Koala", "Lynx",
	"Otter", "Owl", "Panda", "Penguin", "Rabbit", "Raccoon", "Seal", "Sparrow",
	"Tiger", "Turtle", "Whale", "Wolf",
}

// AnonymousName returns "<Adjective><Animal><NN>". Collisions are acceptable.
func AnonymousName() string {
	return fmt.Sprintf("%s%s%02d",
		adjectives[rand.IntN(len(adjectives))],
		animals[rand.IntN(len(animals))],
		rand.IntN(100),
	)
}
