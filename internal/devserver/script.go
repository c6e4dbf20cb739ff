package devserver

import "github.com/topluluk-game/sync-client/internal/state"

// Script is the canned round content the loopback peer serves, one scripted
// event per round.
var Script = []state.ScriptedEvent{
	{
		ID:          "evt-drought",
		Category:    "crisis",
		Title:       "Drought",
		Description: "The reservoir is at a third of its usual level and the fields are cracking.",
		Options: []state.Option{
			{ID: "opt-ration", Title: "Ration water", Description: "Strict quotas for every household.",
				Effects: state.Resources{Welfare: -10, Stability: -5}},
			{ID: "opt-wells", Title: "Dig new wells", Description: "Spend treasury on deep wells.",
				Effects: state.Resources{Treasury: -15, Infrastructure: 10}},
			{ID: "opt-pray", Title: "Wait it out", Description: "Hope the rains come early this year.",
				Effects: state.Resources{Stability: -10}},
		},
	},
	{
		ID:          "evt-market",
		Category:    "opportunity",
		Title:       "Traveling market",
		Description: "A merchant caravan offers tools and seed at a steep but one-time price.",
		Options: []state.Option{
			{ID: "opt-buy", Title: "Buy the lot", Description: "Empty the coffers for the whole stock.",
				Effects: state.Resources{Treasury: -20, Infrastructure: 15, Welfare: 5}},
			{ID: "opt-haggle", Title: "Haggle hard", Description: "Take only what is cheap.",
				Effects: state.Resources{Treasury: -5, Infrastructure: 5}},
			{ID: "opt-decline", Title: "Send them on", Description: "Keep the treasury intact.",
				Effects: state.Resources{}},
		},
	},
	{
		ID:          "evt-dispute",
		Category:    "social",
		Title:       "Boundary dispute",
		Description: "Two families claim the same strip of orchard and tempers are rising.",
		Options: []state.Option{
			{ID: "opt-split", Title: "Split the land", Description: "Half each, no appeals.",
				Effects: state.Resources{Stability: 5, Welfare: -5}},
			{ID: "opt-council", Title: "Hold a council", Description: "Let the assembly decide in public.",
				Effects: state.Resources{Stability: 10, Treasury: -5}},
			{ID: "opt-ignore", Title: "Stay out of it", Description: "Private matters stay private.",
				Effects: state.Resources{Stability: -15}},
		},
	},
}
