package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

const fileExt = ".json"

// FileStore keeps one JSON document per conversation in a directory. It reads
// the older layouts too: documents without an id (the filename stands in) and
// bare message arrays.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

type fileDocument struct {
	Meta         fileMeta            `json:"meta"`
	Messages     []chat.Message      `json:"messages"`
	FileAnalysis []chat.FileAnalysis `json:"fileAnalysis,omitempty"`
}

type fileMeta struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Created chat.Timestamp `json:"created"`
	Updated chat.Timestamp `json:"updated"`
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) List(_ context.Context) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.scanLocked()
	if err != nil {
		return nil, err
	}
	sortByUpdated(convs)
	return convs, nil
}

func (s *FileStore) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, _, err := s.findLocked(id)
	return conv, err
}

func (s *FileStore) Put(_ context.Context, conv Conversation) error {
	if err := validFilename(conv.Filename); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.scanLocked()
	if err != nil {
		return err
	}
	var prevPath string
	for _, held := range convs {
		switch {
		case held.ID == conv.ID:
			prevPath = filepath.Join(s.dir, held.Filename)
		case held.Filename == conv.Filename:
			return filenameTaken(conv)
		}
	}

	doc := fileDocument{
		Meta: fileMeta{
			ID:      conv.ID,
			Name:    conv.Name,
			Created: chat.At(conv.Created),
			Updated: chat.At(conv.Updated),
		},
		Messages:     conv.Messages,
		FileAnalysis: conv.FileAnalysis,
	}
	if doc.Messages == nil {
		doc.Messages = []chat.Message{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conv.ID, err)
	}

	path := filepath.Join(s.dir, conv.Filename)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if prevPath != "" && prevPath != path {
		if err := os.Remove(prevPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", filepath.Base(prevPath)).Msg("failed to remove superseded conversation file")
		}
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, path, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) findLocked(id string) (Conversation, string, error) {
	if id == "" {
		return Conversation{}, "", ErrNotFound
	}
	convs, err := s.scanLocked()
	if err != nil {
		return Conversation{}, "", err
	}
	for _, conv := range convs {
		if conv.ID == id {
			return conv, filepath.Join(s.dir, conv.Filename), nil
		}
	}
	return Conversation{}, "", ErrNotFound
}

func (s *FileStore) scanLocked() ([]Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read conversation dir: %w", err)
	}

	convs := make([]Conversation, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		conv, err := s.readLocked(entry)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable conversation file")
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (s *FileStore) readLocked(entry os.DirEntry) (Conversation, error) {
	info, err := entry.Info()
	if err != nil {
		return Conversation{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
	if err != nil {
		return Conversation{}, err
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return Conversation{}, err
	}

	conv := Conversation{
		ID:           doc.Meta.ID,
		Name:         doc.Meta.Name,
		Filename:     entry.Name(),
		Created:      doc.Meta.Created.Time,
		Updated:      doc.Meta.Updated.Time,
		Messages:     doc.Messages,
		FileAnalysis: doc.FileAnalysis,
	}
	if conv.ID == "" {
		conv.ID = entry.Name()
	}
	if conv.Name == "" {
		conv.Name = chat.DeriveName(conv.Messages)
	}
	modTime := info.ModTime().UTC()
	if conv.Created.IsZero() {
		conv.Created = modTime
	}
	if conv.Updated.IsZero() {
		conv.Updated = modTime
	}
	if conv.Messages == nil {
		conv.Messages = []chat.Message{}
	}
	return conv, nil
}

func decodeDocument(data []byte) (fileDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []chat.Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return fileDocument{}, fmt.Errorf("decode legacy message list: %w", err)
		}
		return fileDocument{Messages: messages}, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fileDocument{}, fmt.Errorf("decode conversation: %w", err)
	}
	return doc, nil
}

func validFilename(name string) error {
	if name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid conversation filename %q", name)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".conv-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move conversation file into place: %w", err)
	}
	return nil
}
