package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/server/auth/credential"
	"pkt.systems/pslog"
)

// FileRegistry persists registrations as a single JSON document. The URL is
// resolved by afs, so local paths and any afs-supported scheme work.
type FileRegistry struct {
	mu      sync.Mutex
	URL     string
	fs      afs.Service
	logger  pslog.Logger
	clients map[string]*Registration
	loaded  bool
}

type fileSnapshot struct {
	Clients map[string]*Registration `json:"clients"`
}

// NewFileRegistry creates a registry backed by the document at URL.
func NewFileRegistry(URL string, logger pslog.Logger) *FileRegistry {
	return &FileRegistry{
		URL:     URL,
		fs:      afs.New(),
		logger:  logging.Subsystem(logger, "registry", "file"),
		clients: map[string]*Registration{},
	}
}

func (f *FileRegistry) LoadAll(ctx context.Context) ([]*Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(ctx); err != nil {
		return nil, err
	}
	ret := make([]*Registration, 0, len(f.clients))
	for _, registration := range f.clients {
		ret = append(ret, registration.Clone())
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ClientID < ret[j].ClientID })
	return ret, nil
}

func (f *FileRegistry) Get(ctx context.Context, clientID string) (*Registration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(ctx); err != nil {
		return nil, false, err
	}
	registration, ok := f.clients[clientID]
	if !ok {
		return nil, false, nil
	}
	return registration.Clone(), true, nil
}

func (f *FileRegistry) Save(ctx context.Context, registration *Registration) error {
	if err := registration.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(ctx); err != nil {
		return err
	}
	f.clients[registration.ClientID] = registration.Clone()
	return f.save(ctx)
}

func (f *FileRegistry) Remove(ctx context.Context, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(ctx); err != nil {
		return err
	}
	if _, ok := f.clients[clientID]; !ok {
		return nil
	}
	delete(f.clients, clientID)
	return f.save(ctx)
}

// ---- persistence ----

func (f *FileRegistry) save(ctx context.Context) error {
	data, err := json.MarshalIndent(fileSnapshot{Clients: f.clients}, "", "  ")
	if err != nil {
		return err
	}
	if err = f.fs.Upload(ctx, f.URL, 0o600, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("registry: write %s: %w: %v", f.URL, credential.ErrStorageUnavailable, err)
	}
	return nil
}

func (f *FileRegistry) load(ctx context.Context) error {
	if f.loaded {
		return nil
	}
	exists, err := f.fs.Exists(ctx, f.URL)
	if err != nil {
		return fmt.Errorf("registry: stat %s: %w: %v", f.URL, credential.ErrStorageUnavailable, err)
	}
	f.clients = map[string]*Registration{}
	if !exists {
		f.loaded = true
		return nil
	}
	data, err := f.fs.DownloadWithURL(ctx, f.URL)
	if err != nil {
		return fmt.Errorf("registry: read %s: %w: %v", f.URL, credential.ErrStorageUnavailable, err)
	}
	var snap fileSnapshot
	if len(bytes.TrimSpace(data)) > 0 {
		if err = json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("registry: decode %s: %w", f.URL, err)
		}
	}
	for id, registration := range snap.Clients {
		if registration == nil {
			continue
		}
		if registration.ClientID == "" {
			registration.ClientID = id
		}
		registration.Normalize()
		f.clients[registration.ClientID] = registration
	}
	f.loaded = true
	f.logger.Debug("registry.file.loaded", "url", f.URL, "clients", len(f.clients))
	return nil
}
