// Package prompts generates the standard evaluation prompt lists for
// personalized diffusion subjects.
package prompts

import "fmt"

// Broad class values of a subject. Humans/animals and cartoon characters
// share the animal prompt list; everything else uses the object list.
const (
	BroadClassObject  = 0
	BroadClassHuman   = 1
	BroadClassCartoon = 2
)

// The "%s%s" templates concatenate the unique token and the class token with
// no separator, so methods without a class token pass an empty string and
// DreamBooth-style class tokens start with a space.
var objectTemplates = []string{
	"a %s%s in the jungle",
	"a %s%s in the snow",
	"a %s%s on the beach",
	"a %s%s on a cobblestone street",
	"a %s%s on top of pink fabric",
	"a %s%s on top of a wooden floor",
	"a %s%s with a city in the background",
	"a %s%s with a mountain in the background",
	"a %s%s with a blue house in the background",
	"a %s%s on top of a purple rug in a forest",
	"a %s%s with a wheat field in the background",
	"a %s%s with a tree and autumn leaves in the background",
	"a %s%s with the Eiffel Tower in the background",
	"a %s%s floating on top of water",
	"a %s%s floating in an ocean of milk",
	"a %s%s on top of green grass with sunflowers around it",
	"a %s%s on top of a mirror",
	"a %s%s on top of the sidewalk in a crowded street",
	"a %s%s on top of a dirt road",
	"a %s%s on top of a white rug",
	"a red %s%s",
	"a purple %s%s",
	"a shiny %s%s",
	"a wet %s%s",
	"a cube shaped %s%s",
}

var animalTemplates = []string{
	"a %s%s in the jungle",
	"a %s%s in the snow",
	"a %s%s on the beach",
	"a %s%s on a cobblestone street",
	"a %s%s on top of pink fabric",
	"a %s%s on top of a wooden floor",
	"a %s%s with a city in the background",
	"a %s%s with a mountain in the background",
	"a %s%s with a blue house in the background",
	"a %s%s on top of a purple rug in a forest",
	"a %s%s wearing a red hat",
	"a %s%s wearing a santa hat",
	"a %s%s wearing a rainbow scarf",
	"a %s%s wearing a black top hat and a monocle",
	"a %s%s in a chef outfit",
	"a %s%s in a firefighter outfit",
	"a %s%s in a police outfit",
	"a %s%s wearing pink glasses",
	"a %s%s wearing a yellow shirt",
	"a %s%s in a purple wizard outfit",
	"a red %s%s",
	"a purple %s%s",
	"a shiny %s%s",
	"a wet %s%s",
	"a cube shaped %s%s",
}

// List formats the evaluation prompts for one subject and returns them
// together with the raw templates they came from.
func List(uniqueToken, classToken string, broadClass int) ([]string, []string) {
	templates := objectTemplates
	if broadClass == BroadClassHuman || broadClass == BroadClassCartoon {
		templates = animalTemplates
	}

	prompts := make([]string, 0, len(templates))
	for _, template := range templates {
		prompts = append(prompts, fmt.Sprintf(template, uniqueToken, classToken))
	}
	return prompts, templates
}
