package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Record{})

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, DefaultName, c.Name())
	assert.False(t, c.Created().IsZero())
	assert.False(t, c.Updated().Before(c.Created()))
	assert.Zero(t, c.Len())
	assert.Nil(t, c.FileAnalysis())
	assert.False(t, c.IsNew())
	assert.False(t, c.IsEdit())
}

func TestNewNormalisesMessages(t *testing.T) {
	c := New(Record{
		Messages: []Message{
			{Role: "ASSISTANT", Content: "hi"},
			{Role: "", Content: "hello"},
		},
	})

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestNewLiftsUpdatedToCreated(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := New(Record{Created: At(created), Updated: At(created.Add(-time.Hour))})

	assert.True(t, c.Updated().Equal(created))
}

func TestAddMessageMarksDirtyAndAdvancesUpdated(t *testing.T) {
	c := NewDraft("draft")
	before := c.Updated()

	c.AddMessage(NewMessage(RoleUser, "hello"))

	assert.True(t, c.IsEdit())
	assert.True(t, c.Updated().After(before))
	assert.Equal(t, uint64(1), c.Revision())
	assert.Equal(t, 1, c.Len())
}

func TestSettersIgnoreEqualValues(t *testing.T) {
	c := New(Record{ID: "a", Name: "n", Filename: "f.json"})
	before := c.Updated()

	c.SetID("a")
	c.SetName("n")
	c.SetFilename("f.json")

	assert.False(t, c.IsEdit())
	assert.True(t, c.Updated().Equal(before))

	c.SetName("renamed")
	assert.True(t, c.IsEdit())
	assert.True(t, c.Updated().After(before))

	mid := c.Updated()
	c.SetID("b")
	c.SetFilename("g.json")
	assert.True(t, c.Updated().After(mid))
	assert.Equal(t, "b", c.ID())
	assert.Equal(t, "g.json", c.Filename())
}

func TestSettersTrimLikeNew(t *testing.T) {
	c := New(Record{ID: "a", Name: "n"})

	c.SetID("  b ")
	c.SetName("  Padded name\t")
	assert.Equal(t, "b", c.ID())
	assert.Equal(t, "Padded name", c.Name())

	restored := New(c.Serialize())
	assert.Equal(t, c.Serialize(), restored.Serialize())

	before := c.Updated()
	c.SetID("   ")
	c.SetName(" Padded name ")
	assert.Equal(t, "b", c.ID())
	assert.True(t, c.Updated().Equal(before))

	c.SetName("  ")
	assert.Equal(t, DefaultName, c.Name())
	assert.Equal(t, c.Serialize(), New(c.Serialize()).Serialize())
}

func TestUpdatedNeverBeforeCreated(t *testing.T) {
	c := NewDraft("x")
	for i := 0; i < 50; i++ {
		prev := c.Updated()
		c.AddMessage(NewMessage(RoleUser, "m"))
		require.True(t, c.Updated().After(prev))
		require.False(t, c.Updated().Before(c.Created()))
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	original := New(Record{
		ID:       "conv-1",
		Name:     "Greeting",
		Filename: "conv_20240102_030405_Greeting.json",
		Created:  At(created),
		Updated:  At(created.Add(time.Minute)),
		Messages: []Message{
			{Role: RoleUser, Content: "hello", Timestamp: At(created)},
			{Role: RoleAssistant, Content: "hi", Timestamp: At(created.Add(time.Second))},
		},
		FileAnalysis: []FileAnalysis{{Filename: "a.txt", Analysis: "short", Timestamp: At(created)}},
	})
	original.AddMessage(NewMessage(RoleUser, "again"))

	rec := original.Serialize()
	restored := New(rec)

	assert.Equal(t, rec, restored.Serialize())
	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Name(), restored.Name())
	assert.Equal(t, original.Filename(), restored.Filename())
	assert.Equal(t, original.Messages(), restored.Messages())
	assert.Equal(t, original.FileAnalysis(), restored.FileAnalysis())
	assert.True(t, original.Created().Equal(restored.Created()))
	assert.True(t, original.Updated().Equal(restored.Updated()))
	assert.Equal(t, original.IsEdit(), restored.IsEdit())
}

func TestSerializeRoundTripThroughJSON(t *testing.T) {
	original := NewDraft("json")
	original.AddMessage(NewMessage(RoleUser, "hello"))

	data, err := json.Marshal(original.Serialize())
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	restored := New(rec)

	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Messages(), restored.Messages())
	assert.True(t, original.Updated().Equal(restored.Updated()))
	assert.True(t, restored.IsNew())
	assert.True(t, restored.IsEdit())
}

func TestConfirmSavedTransitionsIdentity(t *testing.T) {
	c := NewDraft("draft")
	c.AddMessage(NewMessage(RoleUser, "hello"))
	rev := c.Revision()
	before := c.Updated()

	c.ConfirmSaved(Saved{ID: "server-id", Name: "Greeting", Filename: "conv.json"}, rev)

	assert.Equal(t, "server-id", c.ID())
	assert.Equal(t, "Greeting", c.Name())
	assert.Equal(t, "conv.json", c.Filename())
	assert.False(t, c.IsNew())
	assert.False(t, c.IsEdit())
	assert.True(t, c.Updated().After(before))
}

func TestConfirmSavedKeepsDirtyWhenEditedMeanwhile(t *testing.T) {
	c := NewDraft("draft")
	c.AddMessage(NewMessage(RoleUser, "hello"))
	rev := c.Revision()

	c.SetName("local")
	c.ConfirmSaved(Saved{ID: "server-id", Name: "server"}, rev)

	assert.Equal(t, "server-id", c.ID())
	assert.Equal(t, "local", c.Name())
	assert.False(t, c.IsNew())
	assert.True(t, c.IsEdit())
}

func TestAttachFileAnalysis(t *testing.T) {
	c := NewDraft("files")
	c.AttachFileAnalysis(FileAnalysis{Filename: "notes.md", Analysis: "markdown notes"})

	got := c.FileAnalysis()
	require.Len(t, got, 1)
	assert.Equal(t, "notes.md", got[0].Filename)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.True(t, c.IsEdit())
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewDraft("clone")
	c.AddMessage(NewMessage(RoleUser, "one"))

	cp := c.Clone()
	c.AddMessage(NewMessage(RoleUser, "two"))

	assert.Equal(t, 1, cp.Len())
	assert.Equal(t, 2, c.Len())
}
