package game

import (
	"fmt"
	"strings"

	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

const gameRules = `GAME RULES: You are playing a social deduction game where every player pretends to be the same animal.
During the round players go around the room and make an "I"-statement as if they were the animal.
All players know what animal they are pretending to be, except one who is known as the Chameleon. The Chameleon must blend in by providing details about the animal using context from other players.
The other players must be careful not to give away too much information with their responses so that the Chameleon cannot guess the animal. After all players have spoken, they vote on who they think the Chameleon is.

`

const herdTemplate = `You are a %[1]s, keep this a secret at all costs.
In 10 words or less give a description of yourself starting with "I". The description should not give away too much information about the %[1]s as you do not want the Chameleon to be able to guess what animal you are. Do not repeat responses from other players.
If the Chameleon can guess what animal you really are you will LOSE.
Previously Mentioned Descriptions:
%[2]s
`

const chameleonTemplate = `You are the Chameleon, keep this a secret at all costs.
You don't know what animal the other players are, your goal is to deduce it using the context they provide.
Starting with "I" describe yourself in 10 words or less as if you are the same animal as the other players.
If no one else has said anything try to say something generic that could be true of any animals.
If the other players realize you are the Chameleon you will LOSE.
Previously Mentioned Descriptions:
%s
`

const voteTemplate = `Below are the responses from all players. Now it is time to vote. Choose from the players below who you think the Chameleon is.
%s
Reply with the name of one player: %s.
`

const guessTemplate = `The herd has found you out. You have one chance to win: guess the animal the other players are pretending to be.
Their descriptions were:
%s
`

var (
	describeSchema = structured.Schema{
		Title: "AnimalDescription",
		Fields: []structured.Field{
			{Name: "description", Type: structured.TypeString, Description: "A brief description of the animal", Required: true},
		},
	}
	voteSchema = structured.Schema{
		Title: "ChameleonVote",
		Fields: []structured.Field{
			{Name: "vote", Type: structured.TypeString, Description: "The name of the player you are voting for", Required: true},
		},
	}
	guessSchema = structured.Schema{
		Title: "AnimalGuess",
		Fields: []structured.Field{
			{Name: "animal", Type: structured.TypeString, Description: "The name of the animal you think the herd is", Required: true},
		},
	}
)

func introMessage(name string) string {
	return fmt.Sprintf("Welcome to Chameleon! This is a social deduction game. Your name is %s.", name)
}

func herdPrompt(animal, descriptions string) string {
	return gameRules + fmt.Sprintf(herdTemplate, animal, descriptions)
}

func chameleonPrompt(descriptions string) string {
	return gameRules + fmt.Sprintf(chameleonTemplate, descriptions)
}

func votePrompt(descriptions string, names []string) string {
	return fmt.Sprintf(voteTemplate, descriptions, strings.Join(names, ", "))
}

func guessPrompt(descriptions string) string {
	return fmt.Sprintf(guessTemplate, descriptions)
}
