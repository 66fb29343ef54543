package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_ObjectClass(t *testing.T) {
	prompts, templates := List("sks", " backpack", BroadClassObject)
	assert.Len(t, prompts, 25)
	assert.Len(t, templates, 25)

	assert.Equal(t, "a sks backpack in the jungle", prompts[0])
	assert.Equal(t, "a red sks backpack", prompts[20])
	assert.Contains(t, prompts, "a sks backpack floating on top of water")
}

func TestList_AnimalClasses(t *testing.T) {
	human, _ := List("sks", " dog", BroadClassHuman)
	cartoon, _ := List("sks", " dog", BroadClassCartoon)
	assert.Equal(t, human, cartoon)

	assert.Len(t, human, 25)
	assert.Contains(t, human, "a sks dog wearing a santa hat")
	assert.NotContains(t, human, "a sks dog floating on top of water")
}

func TestList_EmptyClassToken(t *testing.T) {
	prompts, _ := List("sks", "", BroadClassHuman)
	assert.Equal(t, "a sks in the jungle", prompts[0])
}

func TestList_SharedTail(t *testing.T) {
	object, _ := List("sks", " toy", BroadClassObject)
	animal, _ := List("sks", " toy", BroadClassHuman)

	// The last five appearance prompts are common to both lists.
	assert.Equal(t, object[20:], animal[20:])
}
