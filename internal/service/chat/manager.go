package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

// ListItem is the listing projection handed to the UI. It carries no history.
type ListItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Updated  time.Time `json:"updated"`
	Filename string    `json:"filename"`
}

// Manager owns the in-memory chat collection and the current chat id.
//
// Chats are stored by id and handed out as clones; callers keep ids, not
// pointers, so a deleted chat can never be reached again. All mutations go
// through Manager methods.
//
// A chat re-keyed by ConfirmSaved stays reachable under its previous ids, so
// a caller holding the id from before a save still finds it.
type Manager struct {
	mu        sync.RWMutex
	chats     map[string]*chat.Chat
	aliases   map[string]string
	order     []string
	currentID string
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		chats:   make(map[string]*chat.Chat),
		aliases: make(map[string]string),
	}
}

// Resolve maps an id a chat had before a save to its current id. Unknown
// ids are returned unchanged.
func (m *Manager) Resolve(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(id)
}

// CreateChat inserts a new unsaved chat and makes it current.
func (m *Manager) CreateChat(name string) *chat.Chat {
	c := chat.NewDraft(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertLocked(c, true)
	m.currentID = c.ID()
	return c.Clone()
}

// LoadChatByID makes the chat with id current. A missing id clears the
// current chat and returns nil.
func (m *Manager) LoadChatByID(id string) *chat.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = m.resolveLocked(id)
	c, ok := m.chats[id]
	if !ok {
		m.currentID = ""
		return nil
	}
	m.currentID = id
	return c.Clone()
}

// DeleteChatByID removes the chat; deleting the current chat clears it.
func (m *Manager) DeleteChatByID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = m.resolveLocked(id)
	if _, ok := m.chats[id]; !ok {
		return
	}
	m.removeLocked(id)
}

// Chat returns a snapshot of the chat with id.
func (m *Manager) Chat(id string) (*chat.Chat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[m.resolveLocked(id)]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Current returns a snapshot of the current chat.
func (m *Manager) Current() (*chat.Chat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.currentID == "" {
		return nil, false
	}
	c, ok := m.chats[m.currentID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// CurrentID returns the current chat id, empty when none is selected.
func (m *Manager) CurrentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

// Len returns the number of chats held.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats)
}

// GetChatList projects every chat into a ListItem, in collection order.
func (m *Manager) GetChatList() []ListItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]ListItem, 0, len(m.order))
	for _, id := range m.order {
		c := m.chats[id]
		items = append(items, ListItem{
			ID:       c.ID(),
			Name:     c.Name(),
			Updated:  c.Updated(),
			Filename: c.Filename(),
		})
	}
	return items
}

// SerializeChats encodes the whole collection.
func (m *Manager) SerializeChats() ([]byte, error) {
	m.mu.RLock()
	records := make([]chat.Record, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.chats[id].Serialize())
	}
	m.mu.RUnlock()

	return json.MarshalIndent(records, "", "  ")
}

// LoadFromJSON replaces the collection with the encoded chats.
func (m *Manager) LoadFromJSON(data []byte) error {
	var records []chat.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode chats: %w", err)
	}
	m.replace(records)
	return nil
}

// LoadChats replaces the collection with chats built from store records.
// Missing fields take the chat constructor's defaults.
func (m *Manager) LoadChats(records []chat.Record) {
	m.replace(records)
}

// AddMessageToChat appends a message unless the chat is missing or its last
// message has the same role and content. It reports whether it appended.
func (m *Manager) AddMessageToChat(chatID string, role chat.Role, content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[m.resolveLocked(chatID)]
	if !ok {
		return false
	}
	if last, ok := c.LastMessage(); ok && last.Role == role && last.Content == content {
		return false
	}

	c.AddMessage(chat.NewMessage(role, content))
	return true
}

// RenameChat sets the chat name, marking it dirty when the name changes.
func (m *Manager) RenameChat(id, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[m.resolveLocked(id)]
	if !ok {
		return false
	}
	c.SetName(name)
	return true
}

// AttachFileAnalysis records an analysis result on the chat.
func (m *Manager) AttachFileAnalysis(id string, rec chat.FileAnalysis) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[m.resolveLocked(id)]
	if !ok {
		return false
	}
	c.AttachFileAnalysis(rec)
	return true
}

// ConfirmSaved applies a successful save to the chat known locally as
// localID. The chat is re-keyed under the store's id, replacing any listing
// entry that already used it, and stays current if it was.
func (m *Manager) ConfirmSaved(localID string, revision uint64, saved chat.Saved) (*chat.Chat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	localID = m.resolveLocked(localID)
	c, ok := m.chats[localID]
	if !ok {
		return nil, false
	}
	c.ConfirmSaved(saved, revision)

	newID := c.ID()
	if newID != localID {
		if _, clash := m.chats[newID]; clash {
			m.order = removeID(m.order, newID)
		}
		delete(m.chats, localID)
		m.chats[newID] = c
		for i, id := range m.order {
			if id == localID {
				m.order[i] = newID
			}
		}
		if m.currentID == localID {
			m.currentID = newID
		}
		delete(m.aliases, newID)
		m.aliases[localID] = newID
	}
	return c.Clone(), true
}

// UpsertLoaded stores a full record fetched from the store, replacing any
// listing entry with the same id.
func (m *Manager) UpsertLoaded(rec chat.Record) *chat.Chat {
	rec.IsNew = false
	rec.IsEdit = false
	c := chat.New(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[c.ID()]; ok {
		m.chats[c.ID()] = c
	} else {
		m.insertLocked(c, false)
	}
	return c.Clone()
}

// SyncSummaries refreshes the collection from the store's listing. Chats
// already held keep their history; clean ones take the store's metadata.
// Unsaved chats and the current chat survive even when absent from the list.
func (m *Manager) SyncSummaries(sums []chat.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]*chat.Chat, len(sums))
	order := make([]string, 0, len(sums))
	for _, sum := range sums {
		if sum.ID == "" {
			continue
		}
		if _, dup := next[sum.ID]; dup {
			continue
		}
		c, ok := m.chats[sum.ID]
		if ok {
			if !c.IsEdit() {
				c.ApplyRemote(sum)
			}
		} else {
			c = chat.New(chat.Record{
				ID:       sum.ID,
				Name:     sum.Name,
				Filename: sum.Filename,
				Created:  sum.Created,
				Updated:  sum.Updated,
			})
		}
		next[sum.ID] = c
		order = append(order, sum.ID)
	}

	kept := make([]string, 0)
	for _, id := range m.order {
		if _, ok := next[id]; ok {
			continue
		}
		c := m.chats[id]
		if c.IsNew() || id == m.currentID {
			next[id] = c
			kept = append(kept, id)
		}
	}

	m.chats = next
	m.order = append(kept, order...)
}

func (m *Manager) replace(records []chat.Record) {
	chats := make(map[string]*chat.Chat, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		c := chat.New(rec)
		if _, dup := chats[c.ID()]; !dup {
			order = append(order, c.ID())
		}
		chats[c.ID()] = c
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chats = chats
	m.aliases = make(map[string]string)
	m.order = order
	if _, ok := chats[m.currentID]; !ok {
		m.currentID = ""
	}
}

func (m *Manager) insertLocked(c *chat.Chat, front bool) {
	if _, ok := m.chats[c.ID()]; !ok {
		if front {
			m.order = append([]string{c.ID()}, m.order...)
		} else {
			m.order = append(m.order, c.ID())
		}
	}
	m.chats[c.ID()] = c
}

// resolveLocked follows aliases left by re-keying saves.
func (m *Manager) resolveLocked(id string) string {
	for i, n := 0, len(m.aliases); i < n; i++ {
		if _, held := m.chats[id]; held {
			break
		}
		next, ok := m.aliases[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

func (m *Manager) removeLocked(id string) {
	delete(m.chats, id)
	m.order = removeID(m.order, id)
	if m.currentID == id {
		m.currentID = ""
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
