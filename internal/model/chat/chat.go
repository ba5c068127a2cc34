package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultName is used for chats created or loaded without a name.
const DefaultName = "Untitled"

var nowFunc = func() time.Time { return time.Now().UTC() }

// Record is the structural snapshot of a Chat used for storage and transport.
type Record struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Filename     string         `json:"filename"`
	Created      Timestamp      `json:"created"`
	Updated      Timestamp      `json:"updated"`
	Messages     []Message      `json:"messages"`
	FileAnalysis []FileAnalysis `json:"fileAnalysis"`
	IsNew        bool           `json:"isNew"`
	IsEdit       bool           `json:"isEdit"`
}

// Summary is the listing entry returned by the remote store.
type Summary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Filename string    `json:"filename"`
	Created  Timestamp `json:"created"`
	Updated  Timestamp `json:"updated"`
}

// Saved is the identity the remote store assigns on a successful save.
type Saved struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

// Chat is one conversation with its history and lifecycle flags.
//
// isNew holds until the first confirmed save; isEdit holds while local state
// differs from what the store last confirmed. Chat is not safe for concurrent
// use; the chat manager serialises access.
type Chat struct {
	id       string
	name     string
	filename string
	created  time.Time
	updated  time.Time

	messages     []Message
	fileAnalysis []FileAnalysis

	isNew    bool
	isEdit   bool
	revision uint64
}

// New builds a chat from a record, filling in defaults for anything missing.
func New(rec Record) *Chat {
	now := nowFunc()

	c := &Chat{
		id:       strings.TrimSpace(rec.ID),
		name:     strings.TrimSpace(rec.Name),
		filename: rec.Filename,
		created:  rec.Created.Time,
		updated:  rec.Updated.Time,
		isNew:    rec.IsNew,
		isEdit:   rec.IsEdit,
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.name == "" {
		c.name = DefaultName
	}
	if c.created.IsZero() {
		c.created = now
	}
	if c.updated.IsZero() {
		c.updated = now
	}
	c.created = c.created.UTC()
	c.updated = c.updated.UTC()
	if c.updated.Before(c.created) {
		c.updated = c.created
	}

	c.messages = make([]Message, 0, len(rec.Messages))
	for _, msg := range rec.Messages {
		c.messages = append(c.messages, normalizeMessage(msg, now))
	}
	if rec.FileAnalysis != nil {
		c.fileAnalysis = append(make([]FileAnalysis, 0, len(rec.FileAnalysis)), rec.FileAnalysis...)
	}
	return c
}

// NewDraft creates a chat that has never been saved.
func NewDraft(name string) *Chat {
	return New(Record{Name: name, IsNew: true})
}

func (c *Chat) ID() string         { return c.id }
func (c *Chat) Name() string       { return c.name }
func (c *Chat) Filename() string   { return c.filename }
func (c *Chat) Created() time.Time { return c.created }
func (c *Chat) Updated() time.Time { return c.updated }
func (c *Chat) IsNew() bool        { return c.isNew }
func (c *Chat) IsEdit() bool       { return c.isEdit }

// Revision counts local mutations. It is not persisted.
func (c *Chat) Revision() uint64 { return c.revision }

// Len returns the number of messages.
func (c *Chat) Len() int { return len(c.messages) }

// Messages returns a copy of the history.
func (c *Chat) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

// LastMessage returns the most recent message, if any.
func (c *Chat) LastMessage() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// FileAnalysis returns a copy of the attachments, nil when there are none.
func (c *Chat) FileAnalysis() []FileAnalysis {
	if c.fileAnalysis == nil {
		return nil
	}
	return append([]FileAnalysis(nil), c.fileAnalysis...)
}

// AddMessage appends msg and marks the chat dirty.
func (c *Chat) AddMessage(msg Message) {
	c.messages = append(c.messages, normalizeMessage(msg, nowFunc()))
	c.markEdited()
}

// AttachFileAnalysis appends an analysis result and marks the chat dirty.
func (c *Chat) AttachFileAnalysis(rec FileAnalysis) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = At(nowFunc())
	}
	c.fileAnalysis = append(c.fileAnalysis, rec)
	c.markEdited()
}

// SetID is a no-op when id is unchanged or blank.
func (c *Chat) SetID(id string) {
	id = strings.TrimSpace(id)
	if id == "" || id == c.id {
		return
	}
	c.id = id
	c.markEdited()
}

// SetName is a no-op when name is unchanged. A blank name resets to
// DefaultName, as New does.
func (c *Chat) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if name == c.name {
		return
	}
	c.name = name
	c.markEdited()
}

// SetFilename is a no-op when filename is unchanged.
func (c *Chat) SetFilename(filename string) {
	if filename == c.filename {
		return
	}
	c.filename = filename
	c.markEdited()
}

// ConfirmSaved adopts the identity assigned by the store. The chat becomes
// clean only if nothing changed since the snapshot taken at revision; a
// rename made while the save was in flight is kept.
func (c *Chat) ConfirmSaved(saved Saved, revision uint64) {
	unchanged := c.revision == revision
	changed := false

	if saved.ID != "" && saved.ID != c.id {
		c.id = saved.ID
		changed = true
	}
	if saved.Filename != "" && saved.Filename != c.filename {
		c.filename = saved.Filename
		changed = true
	}
	if unchanged && saved.Name != "" && saved.Name != c.name {
		c.name = saved.Name
		changed = true
	}
	if changed {
		c.bump()
	}

	c.isNew = false
	if unchanged {
		c.isEdit = false
	}
}

// ApplyRemote refreshes metadata from the store without marking the chat dirty.
func (c *Chat) ApplyRemote(sum Summary) {
	if sum.Name != "" {
		c.name = sum.Name
	}
	if sum.Filename != "" {
		c.filename = sum.Filename
	}
	if !sum.Updated.IsZero() && sum.Updated.After(c.updated) {
		c.updated = sum.Updated.UTC()
	}
}

// Clone returns a deep copy.
func (c *Chat) Clone() *Chat {
	cp := *c
	cp.messages = append(make([]Message, 0, len(c.messages)), c.messages...)
	cp.fileAnalysis = c.FileAnalysis()
	return &cp
}

// Serialize returns a record that New turns back into an equal chat.
func (c *Chat) Serialize() Record {
	return Record{
		ID:           c.id,
		Name:         c.name,
		Filename:     c.filename,
		Created:      At(c.created),
		Updated:      At(c.updated),
		Messages:     append(make([]Message, 0, len(c.messages)), c.messages...),
		FileAnalysis: c.FileAnalysis(),
		IsNew:        c.isNew,
		IsEdit:       c.isEdit,
	}
}

// Summary projects the listing fields.
func (c *Chat) Summary() Summary {
	return Summary{
		ID:       c.id,
		Name:     c.name,
		Filename: c.filename,
		Created:  At(c.created),
		Updated:  At(c.updated),
	}
}

func (c *Chat) markEdited() {
	c.bump()
	c.isEdit = true
	c.revision++
}

// bump keeps updated strictly increasing even when the clock has not moved.
func (c *Chat) bump() {
	now := nowFunc()
	if !now.After(c.updated) {
		now = c.updated.Add(time.Nanosecond)
	}
	c.updated = now
}
